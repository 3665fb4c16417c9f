// Package source provides the line sources fed to the assembler.
package source

import (
	"bufio"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// maxLineSize bounds a single log line.
const maxLineSize = 1 << 20

// File is a line source over a local log file or stdin. Compressed files
// are decompressed transparently based on their extension.
type File struct {
	*bufio.Scanner
	Path    string
	closers []io.Closer
}

// OpenFile opens path for line reading. "-" reads stdin. Files ending in
// .gz are gunzipped, files ending in .zst or .zstd are zstd-decoded.
// Any failure to open or decode the file is a *MissingInputError.
func OpenFile(path string) (*File, error) {
	if path == "-" {
		return newFile(path, os.Stdin), nil
	}
	fi, err := os.Stat(path)
	if err != nil {
		return nil, &MissingInputError{Path: path, Err: err}
	}
	if fi.IsDir() {
		return nil, &MissingInputError{Path: path, Err: errors.New("is a directory")}
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &MissingInputError{Path: path, Err: err}
	}

	var r io.Reader = f
	closers := []io.Closer{f}
	switch lower := strings.ToLower(path); {
	case strings.HasSuffix(lower, ".gz"):
		zr, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &MissingInputError{Path: path, Err: err}
		}
		r = zr
		closers = append([]io.Closer{zr}, closers...)
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		dec, err := zstd.NewReader(f)
		if err != nil {
			f.Close()
			return nil, &MissingInputError{Path: path, Err: err}
		}
		rc := dec.IOReadCloser()
		r = rc
		closers = append([]io.Closer{rc}, closers...)
	}

	file := newFile(path, r)
	file.closers = closers
	return file, nil
}

func newFile(path string, r io.Reader) *File {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	return &File{Scanner: sc, Path: path}
}

// Close releases the decoder and the underlying file.
func (f *File) Close() error {
	var errs []error
	for _, c := range f.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	f.closers = nil
	return errors.Join(errs...)
}
