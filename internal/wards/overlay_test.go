package wards

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/types"
)

func TestOverlay_RejectsUnknownWard(t *testing.T) {
	o := NewOverlay(time.Minute)
	gen := o.NextGeneration()

	assert.ErrorIs(t, o.Apply(gen, models.LiveReading{WardID: 0, AQI: 10}), ErrUnknownWard)
	assert.ErrorIs(t, o.Apply(gen, models.LiveReading{WardID: 251, AQI: 10}), ErrUnknownWard)
	assert.Equal(t, 0, o.Len())
}

func TestOverlay_OlderGenerationNeverOverwritesNewer(t *testing.T) {
	o := NewOverlay(time.Minute)
	slow := o.NextGeneration()
	fast := o.NextGeneration()

	require.NoError(t, o.Apply(fast, models.LiveReading{WardID: 7, AQI: 120}))
	assert.ErrorIs(t, o.Apply(slow, models.LiveReading{WardID: 7, AQI: 300}), ErrStaleGeneration)

	r, ok := o.Get(7)
	require.True(t, ok)
	assert.Equal(t, 120, r.AQI)

	// a later write from the same generation still lands
	require.NoError(t, o.Apply(fast, models.LiveReading{WardID: 7, AQI: 130}))
	r, _ = o.Get(7)
	assert.Equal(t, 130, r.AQI)
}

func TestOverlay_ExpiryDegradesToStatic(t *testing.T) {
	o := NewOverlay(20 * time.Millisecond)
	require.NoError(t, o.Apply(o.NextGeneration(), models.LiveReading{WardID: 3, AQI: 80}))

	w, _ := GetByID(3)
	v := o.Merge(w)
	require.NotNil(t, v.Live)
	assert.Equal(t, "Moderate", v.AQICategory)

	time.Sleep(40 * time.Millisecond)

	v = o.Merge(w)
	assert.Nil(t, v.Live)
	assert.Empty(t, v.AQICategory)
	assert.Equal(t, w.PollutionScore, v.PollutionScore)
}

func TestView_DerivedFields(t *testing.T) {
	w := models.Ward{ID: 1, PollutionScore: 35}
	v := View(w, &models.LiveReading{WardID: 1, AQI: 420})

	assert.Equal(t, types.StatusSevere, v.Status)
	assert.True(t, v.Critical)
	assert.Equal(t, "Hazardous", v.AQICategory)
}
