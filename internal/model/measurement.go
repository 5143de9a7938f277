// Package model defines the core domain types shared across the service:
// measurements, classification results, and the derived display rows.
package model

import "time"

// Indicators holds the four flood-risk indicator values for one observation.
// Field names on the wire follow the upstream dataset column names.
type Indicators struct {
	Rainfall          float64 `json:"curah_hujan"`
	FloodHistory      float64 `json:"history_banjir"`
	PopulationDensity float64 `json:"kepadatan_penduduk"`
	ParkDrainage      float64 `json:"taman_drainase"`
}

// Measurement is one (year, region) observation of flood-risk indicators.
// The Processed flag flips to true only after all three method results for
// the measurement are durably written.
type Measurement struct {
	ID         int64      `json:"id"`
	Year       int        `json:"year"`
	RegionID   int64      `json:"region_id"`
	RegionName string     `json:"region,omitempty"`
	Indicators Indicators `json:"indicators"`
	Processed  bool       `json:"is_processed"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Region is a static administrative district reference row.
type Region struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Station is a fire station shown on the map alongside classified regions.
type Station struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	Address   string  `json:"address"`
	Phone     string  `json:"phone"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
