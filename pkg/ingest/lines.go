// Package ingest turns files into lines for the pool.
package ingest

import (
	"bufio"
	"context"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// checkEvery is how many lines are read between context checks.
const checkEvery = 4096

// ReadLines returns the newline-delimited records in the file at path.
func ReadLines(ctx context.Context, path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	lines, err := ScanLines(ctx, f)
	if err != nil {
		return nil, errors.Wrapf(err, "read %s", path)
	}
	return lines, nil
}

// ScanLines splits r into records. A trailing "\n" or "\r\n" is stripped
// from each record and empty records are kept, but a final newline does not
// produce an extra empty record. Records have no length limit.
func ScanLines(ctx context.Context, r io.Reader) ([]string, error) {
	reader := bufio.NewReader(r)
	lines := []string{}

	for {
		if len(lines)%checkEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line, err := reader.ReadString('\n')
		if len(line) > 0 {
			line = strings.TrimSuffix(line, "\n")
			line = strings.TrimSuffix(line, "\r")
			lines = append(lines, line)
		}

		if err == io.EOF {
			return lines, nil
		}
		if err != nil {
			return nil, err
		}
	}
}
