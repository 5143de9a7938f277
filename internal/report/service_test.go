package report

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/banjirlab/floodmap/internal/model"
	"github.com/banjirlab/floodmap/internal/store"
)

func measurements() []model.Measurement {
	return []model.Measurement{
		{ID: 1, Year: 2023, RegionName: "Gubeng", Indicators: model.Indicators{Rainfall: 150}},
		{ID: 2, Year: 2023, RegionName: "Tambaksari", Indicators: model.Indicators{Rainfall: 90}},
	}
}

func TestResults_MergesAllMethods(t *testing.T) {
	st := new(mockStore)
	st.On("ListMeasurements", mock.Anything, store.MeasurementFilter{Limit: 10}).
		Return(measurements(), 2, nil)
	st.On("ReadResults", mock.Anything, model.MethodMamdani, []int64{1, 2}).
		Return(map[int64]model.MethodScore{
			1: {Crisp: 72.4, Category: model.CategoryHigh},
			2: {Crisp: 25.0, Category: model.CategoryLow},
		}, nil)
	st.On("ReadResults", mock.Anything, model.MethodSugeno, []int64{1, 2}).
		Return(map[int64]model.MethodScore{
			1: {Crisp: 65.1, Category: model.CategoryMedium},
			2: {Crisp: 22.0, Category: model.CategoryLow},
		}, nil)
	st.On("ReadResults", mock.Anything, model.MethodTsukamoto, []int64{1, 2}).
		Return(map[int64]model.MethodScore{
			1: {Crisp: 68.9, Category: model.CategoryMedium},
			2: {Crisp: 30.0, Category: model.CategoryLow},
		}, nil)

	page, err := New(st).Results(context.Background(), Query{})
	require.NoError(t, err)

	assert.Equal(t, 2, page.Total)
	assert.Equal(t, 1, page.Page)
	require.Len(t, page.Rows, 2)

	first := page.Rows[0]
	assert.Equal(t, "Gubeng", first.Region)
	assert.Equal(t, model.MethodScore{Crisp: 72.4, Category: model.CategoryHigh}, first.Mamdani)
	assert.Equal(t, model.MethodScore{Crisp: 65.1, Category: model.CategoryMedium}, first.Sugeno)
	assert.Equal(t, model.MethodScore{Crisp: 68.9, Category: model.CategoryMedium}, first.Tsukamoto)
}

func TestResults_MissingMethodDegradesToSentinel(t *testing.T) {
	st := new(mockStore)
	st.On("ListMeasurements", mock.Anything, mock.Anything).Return(measurements(), 2, nil)
	// Tsukamoto has no row for measurement 2.
	st.On("ReadResults", mock.Anything, model.MethodMamdani, mock.Anything).
		Return(map[int64]model.MethodScore{1: {Crisp: 50, Category: model.CategoryMedium}, 2: {Crisp: 20, Category: model.CategoryLow}}, nil)
	st.On("ReadResults", mock.Anything, model.MethodSugeno, mock.Anything).
		Return(map[int64]model.MethodScore{1: {Crisp: 50, Category: model.CategoryMedium}, 2: {Crisp: 20, Category: model.CategoryLow}}, nil)
	st.On("ReadResults", mock.Anything, model.MethodTsukamoto, mock.Anything).
		Return(map[int64]model.MethodScore{1: {Crisp: 50, Category: model.CategoryMedium}}, nil)

	page, err := New(st).Results(context.Background(), Query{})
	require.NoError(t, err)
	require.Len(t, page.Rows, 2)

	assert.Equal(t, model.MethodScore{Crisp: 20, Category: model.CategoryLow}, page.Rows[1].Sugeno)
	assert.Equal(t, model.SentinelScore(), page.Rows[1].Tsukamoto)
	assert.Equal(t, 0.0, page.Rows[1].Tsukamoto.Crisp)
	assert.Equal(t, model.CategoryNone, page.Rows[1].Tsukamoto.Category)
}

func TestResults_PaginationOffsets(t *testing.T) {
	year := 2022
	st := new(mockStore)
	st.On("ListMeasurements", mock.Anything, store.MeasurementFilter{
		Year: &year, Limit: 5, Offset: 10,
	}).Return([]model.Measurement{}, 23, nil)

	page, err := New(st).Results(context.Background(), Query{Year: &year, Page: 3, PageSize: 5})
	require.NoError(t, err)

	assert.Equal(t, 23, page.Total)
	assert.Empty(t, page.Rows)
	st.AssertNotCalled(t, "ReadResults", mock.Anything, mock.Anything, mock.Anything)
}

func TestResults_RejectsNegativePage(t *testing.T) {
	st := new(mockStore)
	_, err := New(st).Results(context.Background(), Query{Page: -1})
	require.Error(t, err)

	var ve *ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "page", ve.Field)
	st.AssertNotCalled(t, "ListMeasurements", mock.Anything, mock.Anything)
}

func TestResults_CapsPageSize(t *testing.T) {
	st := new(mockStore)
	st.On("ListMeasurements", mock.Anything, store.MeasurementFilter{Limit: 100}).
		Return([]model.Measurement{}, 0, nil)

	page, err := New(st).Results(context.Background(), Query{PageSize: 5000})
	require.NoError(t, err)
	assert.Equal(t, 100, page.PageSize)
}

func TestMeasurements_RawPage(t *testing.T) {
	st := new(mockStore)
	st.On("ListMeasurements", mock.Anything, store.MeasurementFilter{Limit: 10}).
		Return(measurements(), 2, nil)

	page, err := New(st).Measurements(context.Background(), Query{})
	require.NoError(t, err)

	assert.Equal(t, 2, page.Total)
	require.Len(t, page.Rows, 2)
	assert.Equal(t, "Gubeng", page.Rows[0].RegionName)
	st.AssertNotCalled(t, "ReadResults", mock.Anything, mock.Anything, mock.Anything)
}

func TestMapRows_FlagsUnclassified(t *testing.T) {
	st := new(mockStore)
	st.On("ListMeasurements", mock.Anything, mock.Anything).Return(measurements(), 2, nil)
	st.On("ReadResults", mock.Anything, model.MethodMamdani, []int64{1, 2}).
		Return(map[int64]model.MethodScore{1: {Crisp: 72.4, Category: model.CategoryHigh}}, nil)

	rows, err := New(st).MapRows(context.Background(), nil, model.MethodMamdani)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.True(t, rows[0].Classified)
	assert.Equal(t, model.CategoryHigh, rows[0].Category)
	assert.Equal(t, 150.0, rows[0].Indicators.Rainfall)

	assert.False(t, rows[1].Classified)
	assert.Equal(t, model.CategoryNone, rows[1].Category)
	assert.Equal(t, 0.0, rows[1].Crisp)
}

func TestYears_PassesThrough(t *testing.T) {
	st := new(mockStore)
	st.On("ListYears", mock.Anything).Return([]int{2023, 2022, 2021}, nil)

	years, err := New(st).Years(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{2023, 2022, 2021}, years)
}
