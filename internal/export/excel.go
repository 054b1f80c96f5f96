// Package export writes the most recent readings to an xlsx workbook.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/i474232898/weather-recorder/internal/metrics"
	"github.com/i474232898/weather-recorder/internal/weather"
)

// DefaultLimit is the number of readings written per export.
const DefaultLimit = 10

// Header is the first row of every exported sheet.
var Header = []string{"Timestamp", "Temperature", "Precipitation Amount", "Pressure", "Wind Speed", "Wind Direction"}

const timestampFormat = "yyyy-mm-dd hh:mm:ss"

// Exporter snapshots the latest readings into a spreadsheet at a fixed path.
type Exporter struct {
	store    weather.Store
	path     string
	limit    int
	location *time.Location
	logger   *slog.Logger
}

// NewExporter creates an Exporter. Timestamps are written in loc's wall
// clock; a nil loc means UTC.
func NewExporter(store weather.Store, path string, limit int, loc *time.Location, logger *slog.Logger) *Exporter {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		store:    store,
		path:     path,
		limit:    limit,
		location: loc,
		logger:   logger,
	}
}

// Path returns the file the exporter writes.
func (e *Exporter) Path() string {
	return e.path
}

// Export writes the newest readings, replacing any previous file at the path.
func (e *Exporter) Export(ctx context.Context) error {
	readings, err := e.store.LatestReadings(ctx, e.limit)
	if err != nil {
		metrics.RecordError("exporter", "query")
		return fmt.Errorf("load latest readings: %w", err)
	}

	f, err := e.buildWorkbook(readings)
	if err != nil {
		metrics.RecordError("exporter", "build")
		return err
	}
	defer f.Close()

	if err := e.replaceFile(f); err != nil {
		metrics.RecordError("exporter", "write")
		return err
	}

	metrics.ExportedRows.Set(float64(len(readings)))
	e.logger.Debug("readings exported", "path", e.path, "rows", len(readings))
	return nil
}

func (e *Exporter) buildWorkbook(readings []weather.Reading) (*excelize.File, error) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(f.GetActiveSheetIndex())

	header := make([]interface{}, len(Header))
	for i, h := range Header {
		header[i] = h
	}
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		f.Close()
		return nil, fmt.Errorf("write header: %w", err)
	}

	for i, r := range readings {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			f.Close()
			return nil, err
		}
		row := []interface{}{
			wallClock(r.Timestamp, e.location),
			r.Temperature,
			r.PrecipitationAmount,
			r.Pressure,
			r.WindSpeed,
			r.WindDirection,
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			f.Close()
			return nil, fmt.Errorf("write row %d: %w", i+2, err)
		}
	}

	if len(readings) > 0 {
		style, err := f.NewStyle(&excelize.Style{CustomNumFmt: strPtr(timestampFormat)})
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("timestamp style: %w", err)
		}
		last := fmt.Sprintf("A%d", len(readings)+1)
		if err := f.SetCellStyle(sheet, "A2", last, style); err != nil {
			f.Close()
			return nil, fmt.Errorf("apply timestamp style: %w", err)
		}
	}
	if err := f.SetColWidth(sheet, "A", "A", 20); err != nil {
		f.Close()
		return nil, err
	}

	return f, nil
}

// replaceFile writes the workbook next to the target and renames it into
// place, so readers see either the old or the new file.
func (e *Exporter) replaceFile(f *excelize.File) error {
	dir := filepath.Dir(e.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(e.path)+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp export file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := f.WriteTo(tmp); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write workbook: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("sync workbook: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close workbook: %w", err)
	}
	if err := os.Rename(tmpName, e.path); err != nil {
		cleanup()
		return fmt.Errorf("replace %s: %w", e.path, err)
	}
	return nil
}

// wallClock re-labels t's wall clock in loc as UTC; spreadsheet dates carry
// no zone, so the cell shows the local time.
func wallClock(t time.Time, loc *time.Location) time.Time {
	l := t.In(loc)
	return time.Date(l.Year(), l.Month(), l.Day(), l.Hour(), l.Minute(), l.Second(), l.Nanosecond(), time.UTC)
}

func strPtr(s string) *string {
	return &s
}
