package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/V4T54L/commerce-facts/internal/app"
	"github.com/V4T54L/commerce-facts/internal/usecase"
)

func main() {
	date := flag.String("date", "", "partition date (YYYY-MM-DD, default today UTC)")
	flag.Parse()

	day := time.Now().UTC()
	if *date != "" {
		d, err := time.Parse("2006-01-02", *date)
		if err != nil {
			slog.Error("invalid -date", "value", *date, "error", err)
			os.Exit(2)
		}
		day = d
	}

	a, err := app.New("live_loader")
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(a.Finish(ctx, run(ctx, a, day)))
}

func run(ctx context.Context, a *app.App, day time.Time) error {
	store, err := a.EventStore(ctx)
	if err != nil {
		return err
	}
	ingest, err := a.Ingest(store)
	if err != nil {
		return err
	}

	uc := usecase.NewLiveLoadUseCase(ingest, store, a.Config.LiveEventsDir, a.Metrics, a.Logger)
	s, err := uc.Run(ctx, day)
	if s.Missing {
		fmt.Printf("%s: no events file at %s\n", s.Date, s.Path)
	} else {
		fmt.Printf("%s: %d lines, %d inserted, %d updated, %d spooled, %d malformed, %d without event_id\n",
			s.Date, s.Lines, s.Result.Inserted, s.Result.Updated, s.Result.Spooled, s.Malformed, s.MissingID)
	}
	if s.Replayed.Batches > 0 {
		fmt.Printf("replayed from spool: %d inserted, %d updated\n", s.Replayed.Inserted, s.Replayed.Updated)
	}
	fmt.Printf("total events in store: %d\n", s.Total)
	return err
}
