package client

import (
	"context"
	"os"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"

	"github.com/Nao-Mk2/perf-log-consolidator/internal/model"
)

// LogsAPI is the subset of the CloudWatch Logs API we use.
type LogsAPI interface {
	FilterLogEvents(ctx context.Context, params *cloudwatchlogs.FilterLogEventsInput, optFns ...func(*cloudwatchlogs.Options)) (*cloudwatchlogs.FilterLogEventsOutput, error)
}

// AuthOptions selects the AWS region and credentials.
type AuthOptions struct {
	Region  string
	Profile string
}

// CloudWatchClient fetches benchmark log events from CloudWatch Logs.
type CloudWatchClient struct {
	client LogsAPI
}

// NewCloudWatchOptions builds config load options:
// - region if set
// - shared profile from opts.Profile, else AWS_PROFILE
// - otherwise static credentials when AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY are both set
func NewCloudWatchOptions(opts AuthOptions) []func(*config.LoadOptions) error {
	var cfgOpts []func(*config.LoadOptions) error
	if opts.Region != "" {
		cfgOpts = append(cfgOpts, config.WithRegion(opts.Region))
	}
	profile := opts.Profile
	if profile == "" {
		profile = os.Getenv("AWS_PROFILE")
	}
	if profile != "" {
		return append(cfgOpts, config.WithSharedConfigProfile(profile))
	}
	key := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if key != "" && secret != "" {
		provider := credentials.NewStaticCredentialsProvider(key, secret, os.Getenv("AWS_SESSION_TOKEN"))
		cfgOpts = append(cfgOpts, config.WithCredentialsProvider(provider))
	}
	return cfgOpts
}

// NewCloudWatchClient loads AWS configuration and returns a client.
func NewCloudWatchClient(ctx context.Context, opts AuthOptions) (*CloudWatchClient, error) {
	cfg, err := config.LoadDefaultConfig(ctx, NewCloudWatchOptions(opts)...)
	if err != nil {
		return nil, err
	}
	return NewFromAPI(cloudwatchlogs.NewFromConfig(cfg)), nil
}

// NewFromAPI wraps an existing LogsAPI implementation.
func NewFromAPI(api LogsAPI) *CloudWatchClient {
	return &CloudWatchClient{client: api}
}

// SearchGroup returns every event of a single log group within
// [startMs, endMs] matching filterPattern. An empty pattern matches all
// events. Pages are followed until the token is empty or repeats.
func (c *CloudWatchClient) SearchGroup(ctx context.Context, group, filterPattern string, startMs, endMs int64) ([]model.LogRecord, error) {
	var records []model.LogRecord
	var next *string
	for {
		in := &cloudwatchlogs.FilterLogEventsInput{
			LogGroupName: aws.String(group),
			StartTime:    aws.Int64(startMs),
			EndTime:      aws.Int64(endMs),
			NextToken:    next,
		}
		if filterPattern != "" {
			in.FilterPattern = aws.String(filterPattern)
		}
		out, err := c.client.FilterLogEvents(ctx, in)
		if err != nil {
			return nil, err
		}
		for _, e := range out.Events {
			ts := time.Unix(0, aws.ToInt64(e.Timestamp)*int64(time.Millisecond))
			records = append(records, model.LogRecord{
				Timestamp: ts,
				LogGroup:  group,
				LogStream: aws.ToString(e.LogStreamName),
				Message:   aws.ToString(e.Message),
			})
		}
		if out.NextToken == nil || (next != nil && aws.ToString(out.NextToken) == aws.ToString(next)) {
			break
		}
		next = out.NextToken
	}
	return records, nil
}
