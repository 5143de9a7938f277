package model

// DisplayRow merges one measurement's identity with its three method
// results. It is assembled fresh on every query and never persisted; a
// missing method result degrades to the sentinel rather than dropping the
// row.
type DisplayRow struct {
	MeasurementID int64       `json:"id"`
	Year          int         `json:"year"`
	Region        string      `json:"region"`
	Mamdani       MethodScore `json:"mamdani"`
	Sugeno        MethodScore `json:"sugeno"`
	Tsukamoto     MethodScore `json:"tsukamoto"`
}

// Score returns the display row's score for the given method.
func (r *DisplayRow) Score(m Method) MethodScore {
	switch m {
	case MethodMamdani:
		return r.Mamdani
	case MethodSugeno:
		return r.Sugeno
	case MethodTsukamoto:
		return r.Tsukamoto
	default:
		return SentinelScore()
	}
}

// SetScore assigns the score for the given method.
func (r *DisplayRow) SetScore(m Method, s MethodScore) {
	switch m {
	case MethodMamdani:
		r.Mamdani = s
	case MethodSugeno:
		r.Sugeno = s
	case MethodTsukamoto:
		r.Tsukamoto = s
	}
}

// MapRow carries one region's classification for a single method plus the
// raw indicator values shown in map tooltips.
type MapRow struct {
	MeasurementID int64      `json:"id"`
	Region        string     `json:"region"`
	Classified    bool       `json:"classified"`
	Category      Category   `json:"category"`
	Crisp         float64    `json:"crisp_value"`
	Indicators    Indicators `json:"indicators"`
}
