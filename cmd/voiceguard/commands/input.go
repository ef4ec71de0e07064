package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/haivivi/voiceguard/go/pkg/cli"
)

// readAudio reads path, or stdin for "-", refusing files over max bytes.
func readAudio(path string, max int) ([]byte, error) {
	if path == "" {
		return nil, errors.New("flag -f is required")
	}
	var r io.Reader
	if path == "-" {
		r = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(io.LimitReader(r, int64(max)+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if len(data) > max {
		return nil, fmt.Errorf("%s exceeds the %s upload limit", path, cli.FormatBytes(int64(max)))
	}
	return data, nil
}
