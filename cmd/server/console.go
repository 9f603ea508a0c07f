package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ashureev/companion/internal/bot"
	"github.com/ashureev/companion/internal/config"
	"github.com/ashureev/companion/internal/dispatch"
)

// ConsoleUser is the user ID console sessions are stored under.
const ConsoleUser = "console"

const consoleHelp = `Type a message, or:
  :cb <data>          press an inline button
  :loc <lat> <lon>    share a location
  :help               show this help
  :quit               exit`

// conversation is the subset of the controller the console drives.
type conversation interface {
	HandleText(ctx context.Context, userID, text string) bot.Reply
	HandleCallback(ctx context.Context, userID, data string) bot.Reply
	HandleLocation(ctx context.Context, userID string, lat, lon float64) bot.Reply
}

func newConsoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Chat with the bot on stdin/stdout",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, logger, err := loadConfig(config.Console, os.Stderr)
			if err != nil {
				return err
			}
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			runErr := runConsole(ctx, a.controller, a.dispatcher, cmd.InOrStdin(), cmd.OutOrStdout())

			closeCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
			defer cancel()
			if err := a.close(closeCtx); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}
}

// runConsole reads one event per line from in and prints each reply to out
// until in is exhausted, :quit is entered or ctx is cancelled.
func runConsole(ctx context.Context, c conversation, d *dispatch.Dispatcher, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, consoleHelp)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		if ctx.Err() != nil {
			return nil
		}

		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		var event func(ctx context.Context) bot.Reply
		switch cmd, arg, _ := strings.Cut(line, " "); cmd {
		case ":quit", ":q":
			return nil
		case ":help":
			fmt.Fprintln(out, consoleHelp)
			continue
		case ":cb":
			data := strings.TrimSpace(arg)
			event = func(ctx context.Context) bot.Reply {
				return c.HandleCallback(ctx, ConsoleUser, data)
			}
		case ":loc":
			lat, lon, err := parseLatLon(arg)
			if err != nil {
				fmt.Fprintln(out, "usage: :loc <lat> <lon>")
				continue
			}
			event = func(ctx context.Context) bot.Reply {
				return c.HandleLocation(ctx, ConsoleUser, lat, lon)
			}
		default:
			event = func(ctx context.Context) bot.Reply {
				return c.HandleText(ctx, ConsoleUser, line)
			}
		}

		var reply bot.Reply
		if err := d.Do(ctx, ConsoleUser, func(ctx context.Context) {
			reply = event(ctx)
		}); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("dispatch console event: %w", err)
		}
		printReply(out, reply)
	}
}

func parseLatLon(arg string) (float64, float64, error) {
	f := strings.Fields(arg)
	if len(f) != 2 {
		return 0, 0, fmt.Errorf("want 2 coordinates, got %d", len(f))
	}
	lat, err := strconv.ParseFloat(f[0], 64)
	if err != nil {
		return 0, 0, err
	}
	lon, err := strconv.ParseFloat(f[1], 64)
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func printReply(out io.Writer, r bot.Reply) {
	fmt.Fprintln(out, r.Text)
	if r.Keyboard == nil {
		return
	}
	for _, row := range r.Keyboard.Rows {
		keys := make([]string, 0, len(row))
		for _, b := range row {
			switch {
			case b.Data != "":
				keys = append(keys, fmt.Sprintf("[%s] (:cb %s)", b.Text, b.Data))
			case b.RequestLocation:
				keys = append(keys, fmt.Sprintf("[%s] (:loc <lat> <lon>)", b.Text))
			default:
				keys = append(keys, "["+b.Text+"]")
			}
		}
		fmt.Fprintln(out, "  "+strings.Join(keys, " "))
	}
}
