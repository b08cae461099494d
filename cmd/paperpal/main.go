package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"paperpal/internal/config"
	"paperpal/internal/extract"
	"paperpal/internal/httpapi"
	"paperpal/internal/logger"
	"paperpal/internal/service"
	"paperpal/internal/tui"
)

const usage = `Usage: paperpal [--config=config.yaml] [command]

Commands:
  tui                 interactive chat (default)
  ingest FILE...      index PDF or text files, replacing the stored index
  ask QUESTION...     answer a question from the stored index
  serve               run the HTTP API
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, "paperpal:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("paperpal", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	var cfgPath string
	fs.StringVar(&cfgPath, "config", "", "Path to YAML config file (optional; uses ~/.config/paperpal/config.yaml if not provided)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cmd, rest := "tui", fs.Args()
	if len(rest) > 0 {
		cmd, rest = rest[0], rest[1:]
	}

	if err := config.LoadEnv(); err != nil {
		return err
	}
	var cfg *config.AppConfig
	var err error
	if cfgPath == "" {
		cfg, _, err = config.LoadDefault()
	} else {
		cfg, err = config.Load(cfgPath)
	}
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// the TUI owns the terminal, so logs go to a file
	if cmd == "tui" && cfg.Log.File == "" {
		cfg.Log.File = "paperpal.log"
	}
	log, logCloser, err := logger.New(cfg.Log, stderr)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logCloser.Close()

	a, err := assemble(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "tui":
		_, err := tea.NewProgram(tui.New(ctx, a.ctrl), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
		return err
	case "ingest":
		srcs, err := extract.ReadSources(rest)
		if err != nil {
			return err
		}
		out := a.ctrl.Ingest(ctx, srcs)
		if out.Level == service.Success {
			fmt.Fprintf(stdout, "%s: indexed %d documents into %d chunks\n", out.Message, out.Documents, out.Chunks)
		}
		return printOutcome(stdout, out)
	case "ask":
		out := a.ctrl.Query(ctx, strings.Join(rest, " "))
		if out.Level == service.Success {
			fmt.Fprintln(stdout, out.Message)
			for i, r := range out.Passages {
				fmt.Fprintf(stdout, "  [%d] %s (score=%.3f)\n", i+1, r.Record.ID, r.Score)
			}
		}
		return printOutcome(stdout, out)
	case "serve":
		srv := httpapi.New(a.ctrl, httpapi.Config{
			CORSOrigins: cfg.HTTP.CORSOrigins,
			MaxUploadMB: cfg.HTTP.MaxUploadMB,
		}, log)
		return srv.Run(ctx, cfg.HTTP.Addr)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// printOutcome reports warnings and errors; errors become the exit status.
func printOutcome(w io.Writer, out service.Outcome) error {
	switch out.Level {
	case service.Warning:
		fmt.Fprintln(w, out.Message)
	case service.Error:
		return errors.New(out.Message)
	}
	return nil
}
