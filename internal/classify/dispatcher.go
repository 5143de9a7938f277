// Package classify drives unprocessed measurements through the external
// fuzzy-inference service and persists the per-method results.
package classify

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/banjirlab/floodmap/internal/model"
	"github.com/banjirlab/floodmap/internal/resilience"
	"github.com/banjirlab/floodmap/internal/store"
	"github.com/banjirlab/floodmap/pkg/fuzzy"
)

// Dispatcher pulls unprocessed measurements and classifies each with all
// three inference methods. Measurements are independent: a failure on one
// never aborts the run, it only shows up in the report. Results for one
// measurement are saved atomically together with its processed flag, so a
// crashed or failed dispatch leaves the measurement eligible for retry
// with no partial rows visible.
type Dispatcher struct {
	store       store.Store
	classifier  fuzzy.Client
	concurrency int
	limiter     *rate.Limiter
	retry       resilience.RetryConfig
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithConcurrency bounds the number of measurements classified in parallel.
func WithConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.concurrency = n
		}
	}
}

// WithRateLimit throttles classifier calls to rps requests per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(d *Dispatcher) {
		if rps > 0 {
			d.limiter = rate.NewLimiter(rate.Limit(rps), max(burst, 1))
		}
	}
}

// WithRetryConfig overrides the retry policy for classifier calls. A nil
// ShouldRetry keeps the default transient check.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(d *Dispatcher) {
		if cfg.ShouldRetry == nil {
			cfg.ShouldRetry = retryable
		}
		d.retry = cfg
	}
}

// New creates a Dispatcher.
func New(st store.Store, classifier fuzzy.Client, opts ...Option) *Dispatcher {
	retry := resilience.DefaultRetryConfig()
	retry.ShouldRetry = retryable

	d := &Dispatcher{
		store:       st,
		classifier:  classifier,
		concurrency: 4,
		limiter:     rate.NewLimiter(rate.Inf, 1),
		retry:       retry,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Failure records one measurement that could not be classified this run.
type Failure struct {
	MeasurementID int64  `json:"measurement_id"`
	Region        string `json:"region"`
	Year          int    `json:"year"`
	Error         string `json:"error"`
}

// Report summarizes one dispatcher run.
type Report struct {
	RunID     string        `json:"run_id"`
	Selected  int           `json:"selected"`
	Processed int           `json:"processed"`
	Failed    int           `json:"failed"`
	Failures  []Failure     `json:"failures,omitempty"`
	Duration  time.Duration `json:"duration"`
}

// Run classifies every measurement not yet marked processed. An empty
// backlog is a successful no-op. The returned error is reserved for
// conditions that prevent the run entirely (store unreachable); per-
// measurement failures are reported in aggregate.
func (d *Dispatcher) Run(ctx context.Context) (*Report, error) {
	pending, err := d.store.ListUnprocessed(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "classify: list unprocessed")
	}
	return d.dispatch(ctx, pending)
}

// ReclassifyAll re-runs classification for every measurement, including
// ones already processed. Existing result rows are replaced. This is the
// administrative override for corrected indicator values.
func (d *Dispatcher) ReclassifyAll(ctx context.Context) (*Report, error) {
	all, _, err := d.store.ListMeasurements(ctx, store.MeasurementFilter{})
	if err != nil {
		return nil, eris.Wrap(err, "classify: list measurements")
	}
	return d.dispatch(ctx, all)
}

func (d *Dispatcher) dispatch(ctx context.Context, pending []model.Measurement) (*Report, error) {
	report := &Report{
		RunID:    uuid.New().String(),
		Selected: len(pending),
	}
	log := zap.L().With(zap.String("run_id", report.RunID))

	if len(pending) == 0 {
		log.Info("classify: no pending measurements")
		return report, nil
	}

	start := time.Now()
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, m := range pending {
		g.Go(func() error {
			if err := d.classifyOne(gctx, m); err != nil {
				// Cancellation aborts the remaining backlog; anything else
				// is isolated to this measurement.
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn("classify: measurement failed",
					zap.Int64("measurement_id", m.ID),
					zap.String("region", m.RegionName),
					zap.Int("year", m.Year),
					zap.Error(err),
				)
				mu.Lock()
				report.Failed++
				report.Failures = append(report.Failures, Failure{
					MeasurementID: m.ID,
					Region:        m.RegionName,
					Year:          m.Year,
					Error:         err.Error(),
				})
				mu.Unlock()
				return nil
			}

			mu.Lock()
			report.Processed++
			mu.Unlock()
			return nil
		})
	}

	err := g.Wait()
	report.Duration = time.Since(start)

	log.Info("classify: dispatch complete",
		zap.Int("selected", report.Selected),
		zap.Int("processed", report.Processed),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report, eris.Wrap(err, "classify: dispatch")
}

// retryable treats classifier unavailability the same as any other
// transient fault. Permanent rejections (validation, bad payload) are not
// worth a second attempt.
func retryable(err error) bool {
	var ue *fuzzy.UnavailableError
	return errors.As(err, &ue) || resilience.IsTransient(err)
}

func (d *Dispatcher) classifyOne(ctx context.Context, m model.Measurement) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "classify: rate limit wait")
	}

	classification, err := resilience.DoVal(ctx, d.retry, func(ctx context.Context) (*fuzzy.Classification, error) {
		return d.classifier.Classify(ctx, fuzzy.Request{
			Rainfall:          m.Indicators.Rainfall,
			FloodHistory:      m.Indicators.FloodHistory,
			PopulationDensity: m.Indicators.PopulationDensity,
			ParkDrainage:      m.Indicators.ParkDrainage,
		})
	})
	if err != nil {
		return eris.Wrapf(err, "classify: measurement %d", m.ID)
	}

	scores := toScores(classification)
	if err := d.store.SaveClassification(ctx, m.ID, scores); err != nil {
		return eris.Wrapf(err, "classify: save measurement %d", m.ID)
	}
	return nil
}

// toScores converts the service response into canonical per-method scores.
func toScores(c *fuzzy.Classification) map[model.Method]model.MethodScore {
	return map[model.Method]model.MethodScore{
		model.MethodMamdani: {
			Crisp:    c.Mamdani.Crisp,
			Category: model.CategoryFromLabel(c.Mamdani.Label, c.Mamdani.Crisp),
		},
		model.MethodSugeno: {
			Crisp:    c.Sugeno.Crisp,
			Category: model.CategoryFromLabel(c.Sugeno.Label, c.Sugeno.Crisp),
		},
		model.MethodTsukamoto: {
			Crisp:    c.Tsukamoto.Crisp,
			Category: model.CategoryFromLabel(c.Tsukamoto.Label, c.Tsukamoto.Crisp),
		},
	}
}
