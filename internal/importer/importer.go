// Package importer loads measurement rows from CSV and XLSX files into
// the store. Header names are matched loosely so exports from different
// agencies (Indonesian or English column names) load without editing.
package importer

import (
	"context"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/banjirlab/floodmap/internal/model"
	"github.com/banjirlab/floodmap/internal/store"
)

// Record is one parsed measurement row before region resolution.
type Record struct {
	Region     string
	Year       int
	Indicators model.Indicators
}

// Summary reports what one import run did.
type Summary struct {
	Rows     int   `json:"rows"`
	Skipped  int   `json:"skipped"`
	Upserted int64 `json:"upserted"`
}

// Canonical column identifiers used by the header mapper.
const (
	colRegion       = "region"
	colYear         = "year"
	colRainfall     = "rainfall"
	colFloodHistory = "flood_history"
	colDensity      = "population_density"
	colDrainage     = "park_drainage"
)

var columnAliases = map[string]string{
	"region":             colRegion,
	"kecamatan":          colRegion,
	"district":           colRegion,
	"year":               colYear,
	"tahun":              colYear,
	"rainfall":           colRainfall,
	"curah_hujan":        colRainfall,
	"flood_history":      colFloodHistory,
	"history_banjir":     colFloodHistory,
	"population_density": colDensity,
	"kepadatan_penduduk": colDensity,
	"park_drainage":      colDrainage,
	"taman_drainase":     colDrainage,
}

var requiredColumns = []string{colRegion, colYear, colRainfall, colFloodHistory, colDensity, colDrainage}

// mapHeader resolves a header row to canonical column positions.
func mapHeader(header []string) (map[string]int, error) {
	pos := make(map[string]int, len(requiredColumns))
	for i, raw := range header {
		key := strings.ToLower(strings.TrimSpace(raw))
		key = strings.ReplaceAll(key, " ", "_")
		if canonical, ok := columnAliases[key]; ok {
			if _, dup := pos[canonical]; !dup {
				pos[canonical] = i
			}
		}
	}
	for _, col := range requiredColumns {
		if _, ok := pos[col]; !ok {
			return nil, eris.Errorf("importer: missing required column %q", col)
		}
	}
	return pos, nil
}

// parseRows converts raw string rows into records. Malformed rows are
// skipped and counted, never fatal.
func parseRows(rows [][]string, pos map[string]int) ([]Record, int) {
	var records []Record
	var skipped int

	cell := func(row []string, col string) string {
		i := pos[col]
		if i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	for _, row := range rows {
		region := cell(row, colRegion)
		if region == "" {
			skipped++
			continue
		}
		year, err := strconv.Atoi(cell(row, colYear))
		if err != nil || year < 1900 || year > 2200 {
			skipped++
			continue
		}

		var vals [4]float64
		bad := false
		for i, col := range []string{colRainfall, colFloodHistory, colDensity, colDrainage} {
			v, err := strconv.ParseFloat(strings.ReplaceAll(cell(row, col), ",", "."), 64)
			if err != nil || v < 0 {
				bad = true
				break
			}
			vals[i] = v
		}
		if bad {
			skipped++
			continue
		}

		records = append(records, Record{
			Region: region,
			Year:   year,
			Indicators: model.Indicators{
				Rainfall:          vals[0],
				FloodHistory:      vals[1],
				PopulationDensity: vals[2],
				ParkDrainage:      vals[3],
			},
		})
	}
	return records, skipped
}

// Importer resolves regions and bulk-upserts parsed measurement rows.
type Importer struct {
	store store.Store
}

// New creates an Importer.
func New(st store.Store) *Importer {
	return &Importer{store: st}
}

// ImportCSV loads measurements from a CSV file.
func (im *Importer) ImportCSV(ctx context.Context, path string) (*Summary, error) {
	records, skipped, err := ReadCSV(path)
	if err != nil {
		return nil, err
	}
	return im.load(ctx, records, skipped)
}

// ImportXLSX loads measurements from the first sheet of an XLSX workbook.
func (im *Importer) ImportXLSX(ctx context.Context, path string) (*Summary, error) {
	records, skipped, err := ReadXLSX(path)
	if err != nil {
		return nil, err
	}
	return im.load(ctx, records, skipped)
}

func (im *Importer) load(ctx context.Context, records []Record, skipped int) (*Summary, error) {
	summary := &Summary{Rows: len(records), Skipped: skipped}
	if len(records) == 0 {
		zap.L().Warn("importer: no usable rows", zap.Int("skipped", skipped))
		return summary, nil
	}

	regionIDs := make(map[string]int64)
	ms := make([]model.Measurement, 0, len(records))
	for _, rec := range records {
		id, ok := regionIDs[rec.Region]
		if !ok {
			var err error
			id, err = im.store.EnsureRegion(ctx, rec.Region)
			if err != nil {
				return nil, eris.Wrapf(err, "importer: ensure region %q", rec.Region)
			}
			regionIDs[rec.Region] = id
		}
		ms = append(ms, model.Measurement{
			Year:       rec.Year,
			RegionID:   id,
			RegionName: rec.Region,
			Indicators: rec.Indicators,
		})
	}

	upserted, err := im.store.BulkUpsertMeasurements(ctx, ms)
	if err != nil {
		return nil, eris.Wrap(err, "importer: bulk upsert")
	}
	summary.Upserted = upserted

	zap.L().Info("importer: load complete",
		zap.Int("rows", summary.Rows),
		zap.Int("skipped", summary.Skipped),
		zap.Int64("upserted", summary.Upserted),
	)
	return summary, nil
}
