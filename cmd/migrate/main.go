// Command migrate imports an exported stack into a target stack.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

// errUsage marks command line mistakes, which exit with status 2
var errUsage = errors.New("usage error")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()

	switch {
	case err == nil:
	case errors.Is(err, errUsage):
		fmt.Fprintln(os.Stderr, err)
		printUsage()
		os.Exit(2)
	default:
		fmt.Fprintln(os.Stderr, "migrate:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	global := flag.NewFlagSet("migrate", flag.ContinueOnError)
	configPath := global.String("config", "", "Path to the config file (default: ./migrate.toml)")
	logLevel := global.String("log-level", "", "Log level override: debug, info, warn, error")
	global.Usage = printUsage
	if err := global.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}

	rest := global.Args()
	if len(rest) == 0 {
		return fmt.Errorf("%w: a command is required", errUsage)
	}
	command, cmdArgs := rest[0], rest[1:]

	if command == "modules" {
		return modulesCommand(os.Stdout)
	}

	app, err := newApp(*configPath, *logLevel)
	if err != nil {
		return err
	}
	defer app.Close()

	switch command {
	case "run":
		return runCommand(ctx, app, cmdArgs)
	case "history":
		return historyCommand(ctx, app, cmdArgs, os.Stdout)
	case "serve":
		return serveCommand(ctx, app)
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, command)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `Stack import tool

Usage:
  migrate [flags] <command> [arguments]

Commands:
  run [-module name]... [-status]   Import the export into the target stack
  modules                           List importable modules in run order
  history [-run id] [-module name]  Show recorded module runs
  serve                             Serve run history over HTTP

Flags:
  -config string      Path to the config file (default: ./migrate.toml)
  -log-level string   Log level: debug, info, warn, error

Environment Variables:
  MIGRATE_SOURCE_DATA_DIR, MIGRATE_TARGET_API_KEY, MIGRATE_TARGET_MANAGEMENT_TOKEN,
  MIGRATE_MIGRATION_CONCURRENCY, MIGRATE_MIGRATION_ENCRYPTION_KEY, ...

Examples:
  # Import everything, resuming a previous run if its mapper tree exists
  migrate run

  # Import only labels and webhooks with the status API enabled
  migrate run -module labels -module webhooks -status`)
}
