package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/banjirlab/floodmap/internal/classify"
	"github.com/banjirlab/floodmap/internal/geomatch"
	"github.com/banjirlab/floodmap/internal/model"
	"github.com/banjirlab/floodmap/internal/report"
	"github.com/banjirlab/floodmap/internal/shape"
)

// intParam parses an optional integer query parameter. A missing or empty
// value yields (nil, true); a malformed one yields (nil, false).
func intParam(r *http.Request, name string) (*int, bool) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, false
	}
	return &v, true
}

func (s *Server) handleYears(w http.ResponseWriter, r *http.Request) {
	years, err := s.report.Years(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"years": years})
}

// pageQuery parses the year/page/limit parameters shared by the listing
// endpoints.
func pageQuery(r *http.Request) (report.Query, error) {
	q := report.Query{}

	year, ok := intParam(r, "year")
	if !ok {
		return q, &report.ValidationError{Field: "year", Reason: "must be an integer"}
	}
	q.Year = year

	p, ok := intParam(r, "page")
	if !ok {
		return q, &report.ValidationError{Field: "page", Reason: "must be an integer"}
	}
	if p != nil {
		q.Page = *p
	}

	limit, ok := intParam(r, "limit")
	if !ok {
		return q, &report.ValidationError{Field: "limit", Reason: "must be an integer"}
	}
	if limit != nil {
		q.PageSize = *limit
	}
	return q, nil
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	q, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := s.report.Results(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleMeasurements(w http.ResponseWriter, r *http.Request) {
	q, err := pageQuery(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	page, err := s.report.Measurements(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleCreateMeasurement(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Region string `json:"region"`
		Year   int    `json:"year"`
		model.Indicators
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, &report.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}
	if req.Region == "" {
		writeError(w, r, &report.ValidationError{Field: "region", Reason: "is required"})
		return
	}
	if req.Year < 1900 || req.Year > 2200 {
		writeError(w, r, &report.ValidationError{Field: "year", Reason: "out of range"})
		return
	}

	ctx := r.Context()
	regionID, err := s.store.EnsureRegion(ctx, req.Region)
	if err != nil {
		writeError(w, r, err)
		return
	}

	m := &model.Measurement{
		Year:       req.Year,
		RegionID:   regionID,
		RegionName: req.Region,
		Indicators: req.Indicators,
	}
	if err := s.store.InsertMeasurement(ctx, m); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if s.dispatcher == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "classifier not configured"})
		return
	}

	var (
		rep *classify.Report
		err error
	)
	if r.URL.Query().Get("all") == "true" {
		rep, err = s.dispatcher.ReclassifyAll(r.Context())
	} else {
		rep, err = s.dispatcher.Run(r.Context())
	}
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

// mapParams parses the year filter and method selector for map endpoints.
func mapParams(r *http.Request) (*int, model.Method, error) {
	year, ok := intParam(r, "year")
	if !ok {
		return nil, "", &report.ValidationError{Field: "year", Reason: "must be an integer"}
	}

	method := model.MethodMamdani
	if raw := r.URL.Query().Get("method"); raw != "" {
		m, err := model.ParseMethod(raw)
		if err != nil {
			return nil, "", &report.ValidationError{Field: "method", Reason: "must be mamdani, sugeno, or tsukamoto"}
		}
		method = m
	}
	return year, method, nil
}

func (s *Server) handleMap(w http.ResponseWriter, r *http.Request) {
	year, method, err := mapParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := s.report.MapRows(r.Context(), year, method)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// joinFeatures annotates each boundary feature with the classification of
// its matched region. Features that match no row keep the sentinel
// category so the map renders them neutrally.
func joinFeatures(features []shape.Feature, rows []model.MapRow) []shape.Feature {
	matcher := geomatch.NewMatcher(rows)

	joined := make([]shape.Feature, 0, len(features))
	for _, f := range features {
		props := make(map[string]any, len(f.Properties)+5)
		for k, v := range f.Properties {
			props[k] = v
		}
		props["classified"] = false
		props["category"] = string(model.CategoryNone)

		if name, ok := geomatch.FeatureName(f.Properties); ok {
			if row, ok := matcher.Match(name); ok {
				props["region"] = row.Region
				props["classified"] = row.Classified
				props["category"] = string(row.Category)
				props["crisp_value"] = row.Crisp
			}
		}
		joined = append(joined, shape.Feature{Properties: props, Geometry: f.Geometry})
	}
	return joined
}

func (s *Server) handleMapFeatures(w http.ResponseWriter, r *http.Request) {
	year, method, err := mapParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	rows, err := s.report.MapRows(r.Context(), year, method)
	if err != nil {
		writeError(w, r, err)
		return
	}

	doc, err := shape.MarshalFeatureCollection(joinFeatures(s.features, rows))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(doc)
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	regions, err := s.store.ListRegions(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"regions": regions})
}

func (s *Server) handleStations(w http.ResponseWriter, r *http.Request) {
	stations, err := s.store.ListStations(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stations": stations})
}

// handleUpsertStation creates a fire station or updates the one with the
// same name.
func (s *Server) handleUpsertStation(w http.ResponseWriter, r *http.Request) {
	var station model.Station
	if err := json.NewDecoder(r.Body).Decode(&station); err != nil {
		writeError(w, r, &report.ValidationError{Field: "body", Reason: "invalid JSON"})
		return
	}
	if station.Name == "" {
		writeError(w, r, &report.ValidationError{Field: "name", Reason: "is required"})
		return
	}
	if station.Latitude < -90 || station.Latitude > 90 || station.Longitude < -180 || station.Longitude > 180 {
		writeError(w, r, &report.ValidationError{Field: "coordinates", Reason: "out of range"})
		return
	}

	if err := s.store.UpsertStation(r.Context(), &station); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, station)
}
