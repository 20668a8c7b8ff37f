package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/V4T54L/commerce-facts/internal/app"
	"github.com/V4T54L/commerce-facts/internal/domain"
	"github.com/V4T54L/commerce-facts/internal/usecase"
)

func main() {
	snapshot := flag.Bool("snapshot", false, "also export the fact tables as CSV to SNAPSHOT_DIR")
	flag.Parse()

	a, err := app.New("transform")
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(a.Finish(ctx, run(ctx, a, *snapshot)))
}

func run(ctx context.Context, a *app.App, withSnapshot bool) error {
	store, err := a.EventStore(ctx)
	if err != nil {
		return err
	}
	normalizer, err := a.Normalizer()
	if err != nil {
		return err
	}
	warehouse, err := a.Warehouse(ctx)
	if err != nil {
		return err
	}
	var snapshot domain.WarehouseSink
	if withSnapshot {
		snapshot = a.Snapshot()
	}

	uc := usecase.NewTransformUseCase(store, normalizer, warehouse, snapshot, a.Metrics, a.Logger)
	facts, runErr := uc.Run(ctx)
	if facts.Stats == nil {
		return runErr
	}
	for _, t := range facts.Tables() {
		fmt.Printf("%-18s %d rows\n", t.Schema.Table, t.Len())
	}
	return errors.Join(runErr, uc.ExportSnapshot(ctx, facts))
}
