// Package geomatch reconciles region names from classification rows with
// polygon feature attributes. The two datasets spell district names
// differently ("KEC. GUBENG" vs "Gubeng"), so matching runs on aggressively
// normalized forms.
package geomatch

import (
	"strings"
	"unicode"

	"go.uber.org/zap"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/banjirlab/floodmap/internal/model"
)

// nameKeys are the feature attribute keys probed for a district name, in
// priority order. Different shapefile vintages use different schemas.
var nameKeys = []string{"kecamatan", "KECAMATAN", "WADMKC", "NAMOBJ"}

// stripMarks removes diacritics by decomposing and dropping combining marks.
var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize folds a region name to its canonical comparison form:
// diacritics stripped, lowercased, everything outside [a-z0-9] removed.
// Normalize is idempotent.
func Normalize(s string) string {
	folded, _, err := transform.String(stripMarks, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FeatureName extracts the district name from a feature's attributes,
// probing the known schema keys in priority order.
func FeatureName(props map[string]any) (string, bool) {
	for _, key := range nameKeys {
		if v, ok := props[key]; ok {
			if name, ok := v.(string); ok && strings.TrimSpace(name) != "" {
				return name, true
			}
		}
	}
	return "", false
}

// Matcher resolves feature names against a fixed set of classification
// rows. Rows keep their input order; when several rows could match, the
// earliest wins.
type Matcher struct {
	rows []model.MapRow
	norm []string
	log  *zap.Logger
}

// NewMatcher indexes rows by normalized region name.
func NewMatcher(rows []model.MapRow) *Matcher {
	m := &Matcher{
		rows: rows,
		norm: make([]string, len(rows)),
		log:  zap.L(),
	}
	for i, row := range rows {
		m.norm[i] = Normalize(row.Region)
	}
	return m
}

// Match finds the classification row for a feature name. Exact normalized
// equality is preferred; failing that, containment in either direction
// counts as a match. Features that match nothing return false and are the
// caller's to render neutrally.
func (m *Matcher) Match(featureName string) (model.MapRow, bool) {
	target := Normalize(featureName)
	if target == "" {
		return model.MapRow{}, false
	}

	for i, n := range m.norm {
		if n == target {
			return m.rows[i], true
		}
	}

	first := -1
	for i, n := range m.norm {
		if n == "" {
			continue
		}
		if strings.Contains(target, n) || strings.Contains(n, target) {
			if first == -1 {
				first = i
				continue
			}
			m.log.Warn("geomatch: ambiguous feature name",
				zap.String("feature", featureName),
				zap.String("matched", m.rows[first].Region),
				zap.String("also", m.rows[i].Region),
			)
		}
	}
	if first == -1 {
		return model.MapRow{}, false
	}
	return m.rows[first], true
}
