package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

const usage = `paceload - pace-zone classification and training load

Usage:
  paceload <command> [flags]

Commands:
  login       authorize with Strava
  sync        fetch new activities and classify them
  zones       add or show pace zone configurations
  recompute   run pending recompute jobs and exit
  rebuild     reclassify every activity and rebuild weekly tables
  delete      remove an activity and refresh its week
  status      show stored activities and pending recompute work
  serve       run the HTTP API and the recompute worker
  export      write weekly tables to a Parquet file

Run "paceload <command> -h" for command flags.
`

type command func(ctx context.Context, a *app, args []string) error

var commands = map[string]command{
	"login":     runLogin,
	"sync":      runSync,
	"zones":     runZones,
	"recompute": runRecompute,
	"rebuild":   runRebuild,
	"delete":    runDelete,
	"status":    runStatus,
	"serve":     runServe,
	"export":    runExport,
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 || args[0] == "-h" || args[0] == "--help" || args[0] == "help" {
		fmt.Print(usage)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprint(os.Stderr, usage)
		return fmt.Errorf("unknown command %q", args[0])
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if errors.Is(err, errConfigCreated) {
		return nil
	}
	if err != nil {
		return err
	}
	defer a.Close()
	defer a.reporter.Recover()

	err = cmd(ctx, a, args[1:])
	if err != nil && !errors.Is(err, context.Canceled) {
		a.reporter.CaptureException(err, map[string]string{"command": args[0]})
	}
	return err
}
