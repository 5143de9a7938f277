// Package report assembles paginated result views by joining measurements
// with their per-method classification scores. Nothing here is persisted;
// every page is computed from the store on demand.
package report

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"

	"github.com/banjirlab/floodmap/internal/model"
	"github.com/banjirlab/floodmap/internal/store"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// ValidationError reports a query parameter the caller must fix.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("report: invalid %s: %s", e.Field, e.Reason)
}

// Query selects and paginates display rows. Page is 1-based. Zero values
// take defaults; negative values are rejected.
type Query struct {
	Year     *int
	Page     int
	PageSize int
}

// Page is one page of display rows plus the exact total before pagination.
type Page struct {
	Rows     []model.DisplayRow `json:"rows"`
	Total    int                `json:"total"`
	Page     int                `json:"page"`
	PageSize int                `json:"page_size"`
}

// Service reads measurements and classification results and merges them
// into display and map views.
type Service struct {
	store store.Store
}

// New creates a report Service.
func New(st store.Store) *Service {
	return &Service{store: st}
}

func normalizeQuery(q Query) (Query, error) {
	if q.Page == 0 {
		q.Page = 1
	}
	if q.PageSize == 0 {
		q.PageSize = defaultPageSize
	}
	if q.Page < 1 {
		return q, &ValidationError{Field: "page", Reason: "must be at least 1"}
	}
	if q.PageSize < 1 {
		return q, &ValidationError{Field: "page_size", Reason: "must be at least 1"}
	}
	if q.PageSize > maxPageSize {
		q.PageSize = maxPageSize
	}
	return q, nil
}

// Results returns one page of display rows ordered by year descending then
// region name. A measurement missing a method result still appears, with
// the sentinel score for that method. A page past the end is empty, not an
// error.
func (s *Service) Results(ctx context.Context, q Query) (*Page, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	ms, total, err := s.store.ListMeasurements(ctx, store.MeasurementFilter{
		Year:   q.Year,
		Limit:  q.PageSize,
		Offset: (q.Page - 1) * q.PageSize,
	})
	if err != nil {
		return nil, eris.Wrap(err, "report: list measurements")
	}

	rows := make([]model.DisplayRow, len(ms))
	ids := make([]int64, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
		rows[i] = model.DisplayRow{
			MeasurementID: m.ID,
			Year:          m.Year,
			Region:        m.RegionName,
			Mamdani:       model.SentinelScore(),
			Sugeno:        model.SentinelScore(),
			Tsukamoto:     model.SentinelScore(),
		}
	}

	if len(ids) > 0 {
		for _, method := range model.Methods() {
			scores, err := s.store.ReadResults(ctx, method, ids)
			if err != nil {
				return nil, eris.Wrapf(err, "report: read %s results", method)
			}
			for i := range rows {
				if score, ok := scores[rows[i].MeasurementID]; ok {
					rows[i].SetScore(method, score)
				}
			}
		}
	}

	return &Page{
		Rows:     rows,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

// MeasurementPage is one page of raw measurements plus the exact total.
type MeasurementPage struct {
	Rows     []model.Measurement `json:"rows"`
	Total    int                 `json:"total"`
	Page     int                 `json:"page"`
	PageSize int                 `json:"page_size"`
}

// Measurements returns one page of raw indicator rows, same ordering and
// pagination rules as Results.
func (s *Service) Measurements(ctx context.Context, q Query) (*MeasurementPage, error) {
	q, err := normalizeQuery(q)
	if err != nil {
		return nil, err
	}

	ms, total, err := s.store.ListMeasurements(ctx, store.MeasurementFilter{
		Year:   q.Year,
		Limit:  q.PageSize,
		Offset: (q.Page - 1) * q.PageSize,
	})
	if err != nil {
		return nil, eris.Wrap(err, "report: list measurements")
	}
	return &MeasurementPage{
		Rows:     ms,
		Total:    total,
		Page:     q.Page,
		PageSize: q.PageSize,
	}, nil
}

// MapRows returns every matching measurement's score for one method, with
// indicator values for tooltips. Unclassified measurements are flagged
// rather than dropped so the map can render them neutrally.
func (s *Service) MapRows(ctx context.Context, year *int, method model.Method) ([]model.MapRow, error) {
	ms, _, err := s.store.ListMeasurements(ctx, store.MeasurementFilter{Year: year})
	if err != nil {
		return nil, eris.Wrap(err, "report: list measurements")
	}
	if len(ms) == 0 {
		return []model.MapRow{}, nil
	}

	ids := make([]int64, len(ms))
	for i, m := range ms {
		ids[i] = m.ID
	}
	scores, err := s.store.ReadResults(ctx, method, ids)
	if err != nil {
		return nil, eris.Wrapf(err, "report: read %s results", method)
	}

	rows := make([]model.MapRow, len(ms))
	for i, m := range ms {
		row := model.MapRow{
			MeasurementID: m.ID,
			Region:        m.RegionName,
			Category:      model.CategoryNone,
			Indicators:    m.Indicators,
		}
		if score, ok := scores[m.ID]; ok {
			row.Classified = true
			row.Category = score.Category
			row.Crisp = score.Crisp
		}
		rows[i] = row
	}
	return rows, nil
}

// Years lists the distinct measurement years, newest first.
func (s *Service) Years(ctx context.Context) ([]int, error) {
	years, err := s.store.ListYears(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "report: list years")
	}
	return years, nil
}
