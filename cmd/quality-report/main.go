package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/V4T54L/commerce-facts/internal/app"
	"github.com/V4T54L/commerce-facts/internal/quality"
	"github.com/V4T54L/commerce-facts/internal/usecase"
)

func main() {
	a, err := app.New("quality_report")
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

	uc := usecase.NewQualityReportUseCase(store, normalizer, quality.NewChecker(nil), a.ReportSinks(ctx), a.Metrics, a.Logger)
	report, err := uc.Run(ctx)
	if report.GeneratedAt.IsZero() {
		return err
	}
	for _, line := range report.Lines() {
		fmt.Println(line)
	}
	return err
}
