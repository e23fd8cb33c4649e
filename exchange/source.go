package exchange

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

const maxLineBytes = 64 * 1024

// ReadLines hands every non-blank line of r to submit, in order, and
// returns how many it submitted. When ctx ends it stops with ctx.Err(); a
// reader that is also an io.Closer is closed so a blocked read returns.
func ReadLines(ctx context.Context, r io.Reader, submit func(context.Context, string) error) (int, error) {
	if c, ok := r.(io.Closer); ok {
		stop := context.AfterFunc(ctx, func() { _ = c.Close() })
		defer stop()
	}

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 4096), maxLineBytes)
	n := 0
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := submit(ctx, line); err != nil {
			return n, err
		}
		n++
	}
	if err := ctx.Err(); err != nil {
		return n, err
	}
	if err := sc.Err(); err != nil {
		return n, fmt.Errorf("read feed: %w", err)
	}
	return n, nil
}
