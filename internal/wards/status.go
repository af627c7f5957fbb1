package wards

import (
	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/types"
)

// CriticalThreshold is the score below which a ward needs attention
const CriticalThreshold = 40

// StatusFromScore maps an aggregate score to its status. Out-of-range
// scores are clamped to [0,100] first.
func StatusFromScore(score int) types.PollutionStatus {
	score = clamp(score, 0, 100)
	switch {
	case score >= 80:
		return types.StatusGood
	case score >= 60:
		return types.StatusModerate
	case score >= 40:
		return types.StatusUnhealthy
	case score >= 20:
		return types.StatusSevere
	default:
		return types.StatusHazardous
	}
}

// IsCritical reports whether a score is below the critical threshold
func IsCritical(score int) bool {
	return score < CriticalThreshold
}

// AQICategory returns the display category for an air quality index
func AQICategory(aqi int) string {
	switch {
	case aqi <= 50:
		return "Good"
	case aqi <= 100:
		return "Moderate"
	case aqi <= 150:
		return "Unhealthy for Sensitive"
	case aqi <= 200:
		return "Unhealthy"
	case aqi <= 300:
		return "Very Unhealthy"
	default:
		return "Hazardous"
	}
}

// View merges a ward with an optional live reading
func View(w models.Ward, live *models.LiveReading) models.WardView {
	v := models.WardView{
		Ward:     w,
		Status:   StatusFromScore(w.PollutionScore),
		Critical: IsCritical(w.PollutionScore),
	}
	if live != nil {
		r := *live
		v.Live = &r
		v.AQICategory = AQICategory(r.AQI)
	}
	return v
}
