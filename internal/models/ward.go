package models

import (
	"time"

	"github.com/cleanward/internal/types"
)

// Ward is a static reference row. Higher scores are cleaner.
type Ward struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Zone           string  `json:"zone"`
	AirScore       int     `json:"airScore"`
	WaterScore     int     `json:"waterScore"`
	WasteScore     int     `json:"wasteScore"`
	NoiseScore     int     `json:"noiseScore"`
	PollutionScore int     `json:"pollutionScore"`
	Trend7d        float64 `json:"trend7d"`
	Trend30d       float64 `json:"trend30d"`
}

// LiveReading is the live overlay fetched from the pollution provider
type LiveReading struct {
	WardID        int                 `json:"wardId" ch:"ward_id"`
	AQI           int                 `json:"aqi" ch:"aqi"`
	PM25          float64             `json:"pm25" ch:"pm25"`
	TrafficStatus types.TrafficStatus `json:"trafficStatus,omitempty" ch:"traffic_status"`
	LastUpdated   time.Time           `json:"lastUpdated" ch:"last_updated"`
}

// WardView is a ward merged with its derived status and live overlay
type WardView struct {
	Ward
	Status      types.PollutionStatus `json:"status"`
	Critical    bool                  `json:"critical"`
	Live        *LiveReading          `json:"live,omitempty"`
	AQICategory string                `json:"aqiCategory,omitempty"`
}

// ZoneSummary aggregates the wards of one zone
type ZoneSummary struct {
	Zone          string `json:"zone"`
	WardCount     int    `json:"wardCount"`
	AverageScore  int    `json:"averageScore"`
	CriticalCount int    `json:"criticalCount"`
}
