package classify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/banjirlab/floodmap/internal/model"
	"github.com/banjirlab/floodmap/internal/resilience"
	"github.com/banjirlab/floodmap/internal/store"
	"github.com/banjirlab/floodmap/pkg/fuzzy"
)

func fastRetry(attempts int) resilience.RetryConfig {
	return resilience.RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		ShouldRetry:    retryable,
	}
}

func pendingMeasurements() []model.Measurement {
	return []model.Measurement{
		{
			ID: 1, Year: 2023, RegionID: 10, RegionName: "Gubeng",
			Indicators: model.Indicators{Rainfall: 150, FloodHistory: 3, PopulationDensity: 12000, ParkDrainage: 2},
		},
		{
			ID: 2, Year: 2023, RegionID: 11, RegionName: "Tambaksari",
			Indicators: model.Indicators{Rainfall: 90, FloodHistory: 1, PopulationDensity: 8000, ParkDrainage: 4},
		},
	}
}

func classification(crisp float64, label string) *fuzzy.Classification {
	return &fuzzy.Classification{
		Mamdani:   fuzzy.Score{Crisp: crisp, Label: label},
		Sugeno:    fuzzy.Score{Crisp: crisp, Label: label},
		Tsukamoto: fuzzy.Score{Crisp: crisp, Label: label},
	}
}

func TestRun_ClassifiesAllPending(t *testing.T) {
	st := new(mockStore)
	cl := new(mockClassifier)

	st.On("ListUnprocessed", mock.Anything).Return(pendingMeasurements(), nil)
	cl.On("Classify", mock.Anything, fuzzy.Request{
		Rainfall: 150, FloodHistory: 3, PopulationDensity: 12000, ParkDrainage: 2,
	}).Return(classification(72.4, "Tinggi"), nil)
	cl.On("Classify", mock.Anything, fuzzy.Request{
		Rainfall: 90, FloodHistory: 1, PopulationDensity: 8000, ParkDrainage: 4,
	}).Return(classification(25.0, "Rendah"), nil)

	st.On("SaveClassification", mock.Anything, int64(1), map[model.Method]model.MethodScore{
		model.MethodMamdani:   {Crisp: 72.4, Category: model.CategoryHigh},
		model.MethodSugeno:    {Crisp: 72.4, Category: model.CategoryHigh},
		model.MethodTsukamoto: {Crisp: 72.4, Category: model.CategoryHigh},
	}).Return(nil)
	st.On("SaveClassification", mock.Anything, int64(2), map[model.Method]model.MethodScore{
		model.MethodMamdani:   {Crisp: 25.0, Category: model.CategoryLow},
		model.MethodSugeno:    {Crisp: 25.0, Category: model.CategoryLow},
		model.MethodTsukamoto: {Crisp: 25.0, Category: model.CategoryLow},
	}).Return(nil)

	d := New(st, cl, WithConcurrency(2), WithRetryConfig(fastRetry(1)))
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 0, report.Failed)
	assert.Empty(t, report.Failures)
	st.AssertExpectations(t)
	cl.AssertExpectations(t)
}

func TestRun_EmptyBacklogIsNoOp(t *testing.T) {
	st := new(mockStore)
	cl := new(mockClassifier)
	st.On("ListUnprocessed", mock.Anything).Return([]model.Measurement{}, nil)

	d := New(st, cl)
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, report.Selected)
	assert.Equal(t, 0, report.Processed)
	st.AssertNotCalled(t, "SaveClassification", mock.Anything, mock.Anything, mock.Anything)
	cl.AssertNotCalled(t, "Classify", mock.Anything, mock.Anything)
}

func TestRun_ClassifierFailureIsIsolated(t *testing.T) {
	st := new(mockStore)
	cl := new(mockClassifier)

	st.On("ListUnprocessed", mock.Anything).Return(pendingMeasurements(), nil)

	unavailable := &fuzzy.UnavailableError{StatusCode: 503, Err: errors.New("service down")}
	cl.On("Classify", mock.Anything, mock.MatchedBy(func(r fuzzy.Request) bool {
		return r.Rainfall == 150
	})).Return(nil, unavailable)
	cl.On("Classify", mock.Anything, mock.MatchedBy(func(r fuzzy.Request) bool {
		return r.Rainfall == 90
	})).Return(classification(25.0, "Rendah"), nil)

	st.On("SaveClassification", mock.Anything, int64(2), mock.Anything).Return(nil)

	d := New(st, cl, WithConcurrency(1), WithRetryConfig(fastRetry(2)))
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, int64(1), report.Failures[0].MeasurementID)
	assert.Equal(t, "Gubeng", report.Failures[0].Region)

	// Unavailable is transient, so the configured attempts are used up.
	cl.AssertNumberOfCalls(t, "Classify", 3)
	st.AssertNotCalled(t, "SaveClassification", mock.Anything, int64(1), mock.Anything)
}

func TestRun_SaveFailureIsIsolated(t *testing.T) {
	st := new(mockStore)
	cl := new(mockClassifier)

	st.On("ListUnprocessed", mock.Anything).Return(pendingMeasurements(), nil)
	cl.On("Classify", mock.Anything, mock.Anything).Return(classification(50.0, "Sedang"), nil)

	st.On("SaveClassification", mock.Anything, int64(1), mock.Anything).
		Return(errors.New("constraint violation"))
	st.On("SaveClassification", mock.Anything, int64(2), mock.Anything).Return(nil)

	d := New(st, cl, WithConcurrency(1), WithRetryConfig(fastRetry(1)))
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Failures, 1)
	assert.Contains(t, report.Failures[0].Error, "constraint violation")
}

func TestRun_ListErrorAbortsRun(t *testing.T) {
	st := new(mockStore)
	cl := new(mockClassifier)
	st.On("ListUnprocessed", mock.Anything).Return(nil, errors.New("connection refused"))

	d := New(st, cl)
	report, err := d.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)
}

func TestRun_PermanentErrorNotRetried(t *testing.T) {
	st := new(mockStore)
	cl := new(mockClassifier)

	st.On("ListUnprocessed", mock.Anything).Return(pendingMeasurements()[:1], nil)
	cl.On("Classify", mock.Anything, mock.Anything).Return(nil, errors.New("invalid indicator payload"))

	d := New(st, cl, WithRetryConfig(fastRetry(5)))
	report, err := d.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Failed)
	cl.AssertNumberOfCalls(t, "Classify", 1)
}

func TestReclassifyAll_UsesFullMeasurementSet(t *testing.T) {
	st := new(mockStore)
	cl := new(mockClassifier)

	processed := pendingMeasurements()
	processed[0].Processed = true
	processed[1].Processed = true

	st.On("ListMeasurements", mock.Anything, store.MeasurementFilter{}).Return(processed, 2, nil)
	cl.On("Classify", mock.Anything, mock.Anything).Return(classification(50.0, "Sedang"), nil)
	st.On("SaveClassification", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	d := New(st, cl, WithRetryConfig(fastRetry(1)))
	report, err := d.ReclassifyAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, report.Selected)
	assert.Equal(t, 2, report.Processed)
	st.AssertNotCalled(t, "ListUnprocessed", mock.Anything)
}

func TestToScores_FallsBackToCrispThresholds(t *testing.T) {
	scores := toScores(&fuzzy.Classification{
		Mamdani:   fuzzy.Score{Crisp: 15.0, Label: "???"},
		Sugeno:    fuzzy.Score{Crisp: 55.0, Label: ""},
		Tsukamoto: fuzzy.Score{Crisp: 88.0, Label: "Tinggi"},
	})
	assert.Equal(t, model.CategoryLow, scores[model.MethodMamdani].Category)
	assert.Equal(t, model.CategoryMedium, scores[model.MethodSugeno].Category)
	assert.Equal(t, model.CategoryHigh, scores[model.MethodTsukamoto].Category)
}
