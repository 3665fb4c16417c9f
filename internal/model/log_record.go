package model

import "time"

// LogRecord is a single CloudWatch log event fetched from a log group.
type LogRecord struct {
	Timestamp time.Time
	LogGroup  string
	LogStream string
	Message   string
}
