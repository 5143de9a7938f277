package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Method identifies one of the three fuzzy-inference techniques.
type Method string

const (
	MethodMamdani   Method = "mamdani"
	MethodSugeno    Method = "sugeno"
	MethodTsukamoto Method = "tsukamoto"
)

// Methods returns all inference methods in canonical order.
func Methods() []Method {
	return []Method{MethodMamdani, MethodSugeno, MethodTsukamoto}
}

// ParseMethod validates a method selector from user input.
func ParseMethod(s string) (Method, error) {
	switch m := Method(strings.ToLower(strings.TrimSpace(s))); m {
	case MethodMamdani, MethodSugeno, MethodTsukamoto:
		return m, nil
	default:
		return "", eris.Errorf("model: unknown method %q", s)
	}
}

// Category is the discretized flood-risk label derived from a crisp value.
type Category string

const (
	CategoryLow    Category = "low"
	CategoryMedium Category = "medium"
	CategoryHigh   Category = "high"

	// CategoryNone is the sentinel rendered for measurements that have no
	// result yet for a given method.
	CategoryNone Category = "-"
)

// categoryLabels maps the classifier's deployment-language labels onto
// canonical categories.
var categoryLabels = map[string]Category{
	"rendah": CategoryLow,
	"sedang": CategoryMedium,
	"tinggi": CategoryHigh,
	"low":    CategoryLow,
	"medium": CategoryMedium,
	"high":   CategoryHigh,
}

// CategoryFromLabel maps a classifier label onto a canonical category,
// falling back to the crisp-value thresholds when the label is unknown.
func CategoryFromLabel(label string, crisp float64) Category {
	if c, ok := categoryLabels[strings.ToLower(strings.TrimSpace(label))]; ok {
		return c
	}
	return CategoryFromCrisp(crisp)
}

// CategoryFromCrisp discretizes a crisp score: <40 low, <70 medium, else high.
func CategoryFromCrisp(crisp float64) Category {
	switch {
	case crisp < 40:
		return CategoryLow
	case crisp < 70:
		return CategoryMedium
	default:
		return CategoryHigh
	}
}

// MethodScore is one method's crisp score and categorical label.
type MethodScore struct {
	Crisp    float64  `json:"crisp_value"`
	Category Category `json:"category"`
}

// SentinelScore is rendered in place of a missing method result.
func SentinelScore() MethodScore {
	return MethodScore{Crisp: 0, Category: CategoryNone}
}

// ClassificationResult is one persisted per-method result row. At most one
// row exists per (measurement, method) pair.
type ClassificationResult struct {
	MeasurementID int64     `json:"measurement_id"`
	Method        Method    `json:"method"`
	Crisp         float64   `json:"crisp_value"`
	Category      Category  `json:"category"`
	CreatedAt     time.Time `json:"created_at"`
}
