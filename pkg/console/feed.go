package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"
)

// Feed presses keys read from r, one whitespace-separated token at a time.
// "wait:DURATION" pauses, so a script such as "g wait:2s up up wait:1s"
// drives the board without a terminal. Unknown tokens are errors.
func Feed(ctx context.Context, r io.Reader, b *Board) error {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)
	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		tok := sc.Text()
		if d, ok := strings.CutPrefix(tok, "wait:"); ok {
			wait, err := time.ParseDuration(d)
			if err != nil {
				return fmt.Errorf("feed %q: %w", tok, err)
			}
			if err := sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}
		key := tok
		if key == "space" {
			key = " "
		}
		if !b.Press(key) {
			return fmt.Errorf("feed: unknown key %q", tok)
		}
	}
	return sc.Err()
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
