package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agnosto/board-collector/config"
	"github.com/agnosto/board-collector/logger"
	"github.com/agnosto/board-collector/service"
	"github.com/agnosto/board-collector/ui"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	errorColor   = color.New(color.FgRed)
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// RunCollector polls the board until SIGINT or SIGTERM. With once set it
// runs a single cycle and prints its summary.
func RunCollector(cfg *config.Config, once bool) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	if once {
		infoColor.Printf("Running one cycle on /%s/ (takes %s)...\n", cfg.Board.Name, cfg.CycleTime())
		result, err := app.Collector.RunOnce(ctx)
		if result != nil {
			printSummary(result)
		}
		return err
	}

	if app.Hub != nil {
		go func() {
			if err := app.Hub.ListenAndServe(ctx); err != nil {
				logger.Logger.Printf("[ERROR] [dashboard] %v", err)
				errorColor.Printf("Dashboard stopped: %v\n", err)
			}
		}()
		infoColor.Printf("Dashboard on http://%s\n", cfg.Dashboard.Listen)
	}

	infoColor.Printf("Collecting /%s/ every %s. Press Ctrl+C to stop.\n", cfg.Board.Name, cfg.CycleTime())
	err = app.Collector.RunForever(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println("Received interrupt signal. Shutting down...")
		return nil
	}
	return err
}

// RunCleanup runs one retention sweep.
func RunCleanup(cfg *config.Config) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := NewApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	res, err := app.Collector.Cleanup(ctx)
	if err != nil {
		return err
	}
	successColor.Printf("Removed %d images (%d files, %s) older than %d days\n",
		res.Entries, res.Files, humanize.Bytes(res.Freed), cfg.Images.RetentionDays)
	return nil
}

// RunWatch shows the terminal view. With remote set it follows a collector
// running elsewhere through its dashboard; otherwise it runs the collector
// in this process.
func RunWatch(cfg *config.Config, flags Flags) error {
	if flags.Remote != "" {
		model := ui.NewWatchModel(cfg.Board.Name, ui.PollLatest(flags.Remote, flags.Interval))
		_, err := tea.NewProgram(model).Run()
		return err
	}

	ctx, stop := signalContext()
	defer stop()

	pub := ui.NewChannelPublisher(4)
	app, err := NewApp(ctx, cfg, pub)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		defer pub.Close()
		if err := app.Collector.RunForever(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Logger.Printf("[ERROR] [collector] %v", err)
		}
	}()
	if app.Hub != nil {
		go app.Hub.ListenAndServe(ctx)
	}

	_, err = tea.NewProgram(ui.NewWatchModel(cfg.Board.Name, pub.Source())).Run()
	return err
}

func printSummary(r *service.CycleResult) {
	fmt.Println()
	successColor.Printf("Cycle %s finished in %s\n", r.ID[:8], r.Duration.Round(time.Millisecond))
	fmt.Printf("  threads on board: %d\n", len(r.CurrentThreads))
	fmt.Printf("  new threads:      %d %v\n", r.Stats.NewThreads, r.Stats.NewThreadIDs)
	fmt.Printf("  new replies:      %d\n", r.Stats.NewReplies)
	fmt.Printf("  new posts:        %d\n", r.Stats.NewPosts)
	fmt.Printf("  images stored:    %d, reposts: %d\n", r.StoredImages, r.Reposts)
	fmt.Printf("  texts scored:     %d\n", r.ScoredTexts)
	if r.NotModified {
		infoColor.Println("  board was not modified during the cycle")
	}
	if len(r.ActiveThreads) > 0 {
		fmt.Println("  most active:")
		for _, t := range r.ActiveThreads {
			fmt.Printf("    %d  +%d (%d replies)\n", t.No, t.NewReplies, t.Replies)
		}
	}
}
