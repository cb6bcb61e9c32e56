package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"go.uber.org/zap"

	migrationapp "github.com/contentstack/cli-sub008/internal/application/migration"
	"github.com/contentstack/cli-sub008/internal/domain/migration"
	"github.com/contentstack/cli-sub008/internal/infrastructure/progress"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/handler"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/middleware"
	"github.com/contentstack/cli-sub008/internal/interfaces/http/router"
)

var (
	statusOK   = color.New(color.FgGreen).SprintFunc()
	statusWarn = color.New(color.FgYellow).SprintFunc()
	statusFail = color.New(color.FgRed, color.Bold).SprintFunc()
)

func colorStatus(status string) string {
	switch status {
	case string(migrationapp.ModuleCompleted):
		return statusOK(status)
	case string(migrationapp.ModuleSkipped), string(migration.RunStatusProcessing), string(migration.RunStatusPending):
		return statusWarn(status)
	default:
		return statusFail(status)
	}
}

// printReport writes the per-module summary of a run
func printReport(w io.Writer, report *migrationapp.Report) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "\nRun %s\n", report.RunID)
	fmt.Fprintln(tw, "MODULE\tSTATUS\tTOTAL\tCREATED\tSKIPPED\tFAILED\tDURATION")
	for _, m := range report.Modules {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			m.Kind, colorStatus(string(m.Status)), m.Total, m.Succeeded, m.Skipped, m.Failed,
			m.Duration.Round(time.Millisecond))
	}
	_ = tw.Flush()
	for _, m := range report.Modules {
		if m.Err != nil {
			fmt.Fprintf(w, "%s: %v\n", m.Kind, m.Err)
		}
	}
}

func modulesCommand(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ORDER\tMODULE\tEXPORT")
	for i, kind := range migration.ImportOrder() {
		fmt.Fprintf(tw, "%d\t%s\t%s/\n", i+1, kind, kind.DirName())
	}
	return tw.Flush()
}

func historyCommand(ctx context.Context, a *app, args []string, w io.Writer) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	runID := fs.String("run", "", "Only show modules of this run")
	module := fs.String("module", "", "Only show this module")
	status := fs.String("status", "", "Only show runs with this status")
	limit := fs.Int("limit", 20, "Maximum number of rows")
	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", errUsage, err)
	}
	if a.history == nil {
		return fmt.Errorf("run history is disabled; set history.enabled")
	}

	result, err := a.history.List(ctx, migrationapp.ListHistoryFilter{
		RunID:  *runID,
		Module: *module,
		Status: *status,
	}, 1, *limit)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tMODULE\tSTATUS\tTOTAL\tCREATED\tSKIPPED\tFAILED\tSTARTED\tERROR")
	for _, h := range result.Items {
		started := "-"
		if h.StartedAt != nil {
			started = h.StartedAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\t%s\n",
			h.RunID, h.Module, colorStatus(string(h.Status)), h.TotalItems, h.SuccessItems,
			h.SkippedItems, h.FailedItems, started, h.ErrorMessage)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if result.TotalCount > int64(len(result.Items)) {
		fmt.Fprintf(w, "showing %d of %d\n", len(result.Items), result.TotalCount)
	}
	return nil
}

// serveCommand serves run history until interrupted
func serveCommand(ctx context.Context, a *app) error {
	if a.history == nil {
		return fmt.Errorf("run history is disabled; set history.enabled")
	}
	engine := router.NewStatusEngine(router.StatusDeps{
		Version:  version,
		Progress: progress.NewRegistry(nil),
		History:  a.history,
		Checks:   a.healthChecks(),
		Tracing: middleware.TracingConfig{
			ServiceName: a.cfg.Telemetry.ServiceName,
			Enabled:     a.tracer.IsEnabled(),
		},
		Logger: a.log,
	})
	srv := router.NewServer(a.cfg.Status, engine, a.log)
	if _, err := srv.Start(); err != nil {
		return fmt.Errorf("failed to start status server: %w", err)
	}

	<-ctx.Done()
	a.log.Info("Shutting down status server...")
	if err := srv.Shutdown(context.Background()); err != nil {
		a.log.Error("Status server forced to shutdown", zap.Error(err))
		return err
	}
	return nil
}

// historyReader avoids handing a typed nil to the status engine
func historyReader(a *app) handler.RunHistoryReader {
	if a.history == nil {
		return nil
	}
	return a.history
}
