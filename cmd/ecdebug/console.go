// cmd/ecdebug/console.go
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/tamzrod/ecdebug/internal/config"
	"github.com/tamzrod/ecdebug/internal/console"
)

var (
	followConsole bool
	consoleTUI    bool
	pollInterval  time.Duration
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Print the EC console log",
	Long: `Drain the EC console log once and print what it holds.

With --follow the log keeps streaming until interrupted; --tui shows it in
a scrolling terminal view with pipeline counters.`,
	RunE: runConsole,
}

func init() {
	consoleCmd.Flags().BoolVarP(&followConsole, "follow", "f", false, "Keep streaming new output")
	consoleCmd.Flags().BoolVar(&consoleTUI, "tui", false, "Interactive terminal view")
	consoleCmd.Flags().DurationVar(&pollInterval, "interval", time.Second, "Poll interval while following")
	rootCmd.AddCommand(consoleCmd)
}

func runConsole(cmd *cobra.Command, args []string) error {
	if consoleTUI && !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("--tui needs a terminal on stdout")
	}
	streaming := followConsole || consoleTUI
	s, err := openSession(func(dc *config.DeviceConfig) {
		if streaming && pollInterval > 0 {
			dc.Console.PollIntervalMs = int(pollInterval / time.Millisecond)
		}
	})
	if err != nil {
		return err
	}
	defer s.Close()

	d := s.first()
	p, ok := d.Console()
	if !ok {
		return fmt.Errorf("device %s: EC has no console log support", d.ID())
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if consoleTUI {
		return runConsoleTUI(ctx, d)
	}
	if followConsole {
		return streamConsole(ctx, p, os.Stdout)
	}

	p.ForceDrain()
	return dumpConsole(p, os.Stdout)
}

// dumpConsole writes whatever is buffered without waiting for more.
func dumpConsole(p *console.Pipeline, w io.Writer) error {
	buf := make([]byte, 4096)
	for {
		n, err := p.Read(context.Background(), buf, true)
		if errors.Is(err, console.ErrWouldBlock) || errors.Is(err, console.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
}

// streamConsole copies console output to w until ctx is done.
func streamConsole(ctx context.Context, p *console.Pipeline, w io.Writer) error {
	buf := make([]byte, 4096)
	for {
		n, err := p.Read(ctx, buf, false)
		switch {
		case ctx.Err() != nil, errors.Is(err, console.ErrClosed):
			return nil
		case err != nil:
			return err
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
}
