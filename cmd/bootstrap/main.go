package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/V4T54L/commerce-facts/internal/app"
	"github.com/V4T54L/commerce-facts/internal/usecase"
)

func main() {
	a, err := app.New("bootstrap")
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
	ingest, err := a.Ingest(store)
	if err != nil {
		return err
	}

	uc := usecase.NewBootstrapUseCase(ingest, store, a.Config.BootstrapDir, a.Metrics, a.Logger)
	summary, err := uc.Run(ctx)
	for _, f := range summary.Files {
		switch {
		case f.Missing:
			fmt.Printf("%-22s missing\n", f.File)
		case f.Err != nil:
			fmt.Printf("%-22s failed: %v\n", f.File, f.Err)
		default:
			fmt.Printf("%-22s %6d records (%d inserted, %d updated, %d spooled, %d malformed)\n",
				f.File, f.Records, f.Result.Inserted, f.Result.Updated, f.Result.Spooled, f.Malformed)
		}
	}
	fmt.Printf("total historical events: %d\n", summary.TotalHistorical)
	return err
}
