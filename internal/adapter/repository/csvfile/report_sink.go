package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/V4T54L/commerce-facts/internal/domain"
)

// ReportSink writes each report as <name>_<day>.csv (a header of field keys and one
// row of values) and <name>_<day>.txt (rendered lines).
type ReportSink struct {
	dir    string
	logger *slog.Logger
}

// NewReportSink creates a file report sink rooted at dir.
func NewReportSink(dir string, logger *slog.Logger) *ReportSink {
	return &ReportSink{dir: dir, logger: logger.With("component", "file_report_sink")}
}

// Paths returns the csv and txt paths of a report.
func (s *ReportSink) Paths(report domain.Report) (csvPath, txtPath string) {
	base := filepath.Join(s.dir, fmt.Sprintf("%s_%s", report.Name, report.Day()))
	return base + ".csv", base + ".txt"
}

// WriteReport overwrites the files of the report's day.
func (s *ReportSink) WriteReport(ctx context.Context, report domain.Report) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create report dir: %w", err)
	}
	csvPath, txtPath := s.Paths(report)

	f, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", csvPath, err)
	}
	header := make([]string, len(report.Fields))
	row := make([]string, len(report.Fields))
	for i, field := range report.Fields {
		header[i], row[i] = field.Key, field.Value
	}
	cw := csv.NewWriter(f)
	for _, record := range [][]string{header, row} {
		if err := cw.Write(record); err != nil {
			f.Close()
			return fmt.Errorf("failed to write %s: %w", csvPath, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write %s: %w", csvPath, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	text := strings.Join(report.Lines, "\n")
	if len(report.Lines) > 0 {
		text += "\n"
	}
	if err := os.WriteFile(txtPath, []byte(text), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", txtPath, err)
	}

	s.logger.Info("report saved", "csv", csvPath, "txt", txtPath)
	return nil
}
