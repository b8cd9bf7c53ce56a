package monitor

import (
	"bufio"
	"context"
	"fmt"
	"io"
)

// ReadCommands applies every line read from in to store and writes feedback to out. It must be
// the only writer of store. quit is called on the q command; end of input only stops reading.
func ReadCommands(ctx context.Context, in io.Reader, out io.Writer, store *SettingsStore, quit func()) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}

		next, res, err := ApplyCommand(scanner.Text(), store.Load())
		if err != nil {
			fmt.Fprintf(out, "x %v\n", err)
			continue
		}
		store.Store(next)

		if res.Message != "" {
			if res.Help {
				fmt.Fprintln(out, res.Message)
			} else {
				fmt.Fprintf(out, "ok %s\n", res.Message)
			}
		}
		if res.Quit {
			quit()
			return
		}
	}
}
