package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"oracle-pricefeed/internal/storage"
)

// Export renders a pair's accepted price history as CSV and/or PNG.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxPoints = a.Config.ResolveMaxPoints(opts.MaxPoints)

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot export")
	}
	if closeStore != nil {
		defer closeStore()
	}

	to := time.Now().UTC()
	if opts.To != nil {
		to = opts.To.UTC()
	}

	from := to.Add(-time.Duration(opts.MaxPoints) * a.Config.Scheduler.Interval)
	if opts.From != nil {
		from = opts.From.UTC()
	}

	if !from.Before(to) {
		return errors.New("from must be before to")
	}

	updates, err := store.ListUpdatesBetween(ctx, opts.PairID, from, to)
	if err != nil {
		return err
	}
	if len(updates) == 0 {
		a.Logger.Info().Uint32("pair_id", opts.PairID).Msg("no updates found for export window")
		return nil
	}

	downsampled := downsampleUpdates(updates, opts.MaxPoints)
	a.Logger.Info().Int("total", len(updates)).Int("exported", len(downsampled)).Msg("exporting price updates")

	if opts.CSVPath != "" {
		if err := writeUpdatesCSV(opts.CSVPath, downsampled); err != nil {
			return err
		}
	}

	if opts.PNGPath != "" {
		if err := writeUpdatesPNG(opts.PNGPath, opts.PairID, downsampled); err != nil {
			return err
		}
	}

	return nil
}

func downsampleUpdates(updates []storage.PriceUpdateRecord, max int) []storage.PriceUpdateRecord {
	if max <= 0 || len(updates) <= max {
		return updates
	}

	result := make([]storage.PriceUpdateRecord, 0, max)
	step := float64(len(updates)-1) / float64(max-1)
	for i := 0; i < max; i++ {
		idx := int(math.Round(step * float64(i)))
		if idx >= len(updates) {
			idx = len(updates) - 1
		}
		result = append(result, updates[idx])
	}
	return result
}

func writeUpdatesCSV(path string, updates []storage.PriceUpdateRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	header := []string{"recorded_at", "pair_id", "value", "decimal", "timestamp_ms", "round", "root"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, u := range updates {
		record := []string{
			u.CreatedAt.UTC().Format(time.RFC3339),
			strconv.FormatUint(uint64(u.PairID), 10),
			u.Value.String(),
			strconv.FormatUint(uint64(u.Decimal), 10),
			strconv.FormatUint(u.Timestamp, 10),
			strconv.FormatUint(u.Round, 10),
			u.Root,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	return writer.Error()
}

func writeUpdatesPNG(path string, pairID uint32, updates []storage.PriceUpdateRecord) error {
	if err := ensureDir(path); err != nil {
		return err
	}

	x := make([]time.Time, len(updates))
	values := make([]float64, len(updates))

	for i, u := range updates {
		x[i] = u.CreatedAt
		values[i] = u.Value.InexactFloat64()
	}

	valueFormatter := func(v interface{}) string {
		return chart.FloatValueFormatterWithFormat(v, "%.6f")
	}
	graph := chart.Chart{
		Width:  1280,
		Height: 720,
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatter,
		},
		YAxis: chart.YAxis{
			Name:           fmt.Sprintf("Pair %d price", pairID),
			ValueFormatter: valueFormatter,
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    fmt.Sprintf("pair %d", pairID),
				XValues: x,
				YValues: values,
			},
		},
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return graph.Render(chart.PNG, file)
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
