package main

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/V4T54L/commerce-facts/internal/app"
	"github.com/V4T54L/commerce-facts/internal/usecase"
)

func main() {
	a, err := app.New("dimensions")
	if err != nil {
		slog.Error("failed to start", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	os.Exit(a.Finish(ctx, run(ctx, a)))
}

func run(ctx context.Context, a *app.App) error {
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

	uc := usecase.NewDimensionsUseCase(store, normalizer, warehouse, a.Metrics, a.Logger)
	summary, err := uc.Run(ctx)
	for _, table := range slices.Sorted(maps.Keys(summary.Rows)) {
		fmt.Printf("%-14s %d rows\n", table, summary.Rows[table])
	}
	return err
}
