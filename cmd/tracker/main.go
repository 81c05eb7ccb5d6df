// Command tracker runs one expense tracker instance driven by line commands
// on stdin. Instances sharing a store and a sync channel see each other's
// changes as they happen.
package main

import (
	"bufio"
	"context"
	"errors"
	"io"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"expensetracker/internal/backend"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	httpview "expensetracker/internal/http"
	"expensetracker/internal/log"
	"expensetracker/internal/repository"
	gsheet "expensetracker/internal/sheets/google"
	"expensetracker/internal/sink"
	"expensetracker/internal/tracker"
	"expensetracker/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger()
	cfg := cli.LoadAndValidateConfig(logger)

	ctx, stop := cli.ShutdownContext(context.Background(), logger)
	defer stop()

	if err := run(ctx, logger, cfg, os.Stdin, os.Stdout); err != nil {
		logger.Error("Tracker stopped with error", log.FieldError, err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Warn("Cleanup failed", log.FieldError, err)
		}
	}()

	logger = logger.With(log.FieldInstanceID, res.InstanceID)
	term := sink.NewTerminal(out)
	sinks := sink.Multi{term, renderLog(logger)}

	var publisher *gsheet.Publisher
	if cfg.SheetsEnabled() {
		publisher, err = gsheet.New(ctx, gsheet.Options{
			SpreadsheetID:      cfg.GoogleSpreadsheetID,
			SheetName:          cfg.GoogleSheetName,
			ServiceAccountJSON: cfg.GoogleServiceAccountJSON,
			ServiceAccountFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Warn("Spreadsheet mirror disabled", log.FieldError, err)
		} else {
			sinks = append(sinks, publisher)
			logger.Info("Spreadsheet mirror enabled", log.FieldSpreadsheet, cfg.GoogleSpreadsheetID)
		}
	}

	var dashboard *httpview.Server
	if cfg.DashboardEnabled() {
		dashboard, err = httpview.NewServer(cfg.HTTPAddr, logger)
		if err != nil {
			return err
		}
		sinks = append(sinks, dashboard)
	}

	ctrl := tracker.New(repository.New(res.Store), res.Bus, sinks, tracker.WithLogger(logger))
	if err := ctrl.Load(ctx); err != nil {
		// The tracker still works locally; the resync worker picks up remote writes.
		logger.Warn("Running without live sync", log.FieldError, err)
	}

	resyncer := worker.NewResyncer(ctrl, worker.ResyncerConfig{Interval: cfg.ResyncInterval})
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := resyncer.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer stopCancel()
		if err := resyncer.Stop(stopCtx); err != nil {
			logger.Warn("Resyncer did not stop in time", log.FieldError, err)
		}
		return nil
	})

	if publisher != nil {
		g.Go(func() error { return publisher.Run(gctx) })
	}

	if dashboard != nil {
		g.Go(dashboard.ListenAndServe)
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer shutdownCancel()
			return dashboard.Shutdown(shutdownCtx)
		})
	}

	lines := readLines(in)
	sh := newShell(ctrl, term.Println)
	g.Go(func() error {
		defer cancel()
		return commandLoop(gctx, sh, lines, term.Println)
	})

	err = g.Wait()

	// Anything the store refused so far gets a last chance.
	flushCtx, flushCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer flushCancel()
	if ferr := ctrl.Flush(flushCtx); ferr != nil {
		logger.Warn("Unsaved changes lost on exit", log.FieldError, ferr)
	}

	logger.Info("Tracker stopped", log.FieldOperation, log.OpShutdown)
	return err
}

// commandLoop executes lines until quit, end of input or cancellation.
// Command errors are shown to the user and never end the loop.
func commandLoop(ctx context.Context, sh *shell, lines <-chan string, println func(a ...any)) error {
	println("Type help for the list of commands.")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			quit, err := sh.exec(ctx, line)
			if err != nil {
				println("Error:", err)
			}
			if quit {
				return nil
			}
		}
	}
}

// readLines feeds stdin into a channel. The goroutine outlives the loop when
// stdin stays open; it ends with the process.
func readLines(in io.Reader) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) {
			log.Default().Warn("Failed to read input", log.FieldError, err)
		}
	}()
	return lines
}

// renderLog traces every render at debug level.
func renderLog(logger *log.Logger) sink.Func {
	return func(ctx context.Context, v tracker.View) {
		logger.DebugContext(ctx, "View rendered",
			log.FieldMode, v.Mode,
			log.FieldCount, len(v.Expenses),
			"total", v.Totals.Total.StringFixed(2),
			"date_filter", v.Filter.Date,
			log.FieldCategory, v.Filter.Category)
	}
}
