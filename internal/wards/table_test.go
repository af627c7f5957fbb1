package wards

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable_CoversEveryWard(t *testing.T) {
	all := All()
	require.Len(t, all, MaxID)

	zoneSet := make(map[string]bool)
	for _, z := range Zones() {
		zoneSet[z] = true
	}
	assert.Len(t, zoneSet, 11)

	for i, w := range all {
		assert.Equal(t, i+1, w.ID)
		assert.True(t, zoneSet[w.Zone], "ward %d has unknown zone %q", w.ID, w.Zone)

		for _, s := range []int{w.AirScore, w.WaterScore, w.WasteScore, w.NoiseScore, w.PollutionScore} {
			assert.GreaterOrEqual(t, s, 0)
			assert.LessOrEqual(t, s, 100)
		}

		mean := math.Round(float64(w.AirScore+w.WaterScore+w.WasteScore+w.NoiseScore) / 4)
		assert.Equal(t, int(mean), w.PollutionScore)
	}
}

func TestTable_Deterministic(t *testing.T) {
	assert.Equal(t, generate(), generate())
}

func TestGetByID(t *testing.T) {
	w, ok := GetByID(1)
	require.True(t, ok)
	assert.Equal(t, 1, w.ID)

	w, ok = GetByID(250)
	require.True(t, ok)
	assert.Equal(t, 250, w.ID)

	_, ok = GetByID(0)
	assert.False(t, ok)
	_, ok = GetByID(251)
	assert.False(t, ok)
}

func TestAll_ReturnsCopy(t *testing.T) {
	a := All()
	a[0].Name = "mutated"
	w, _ := GetByID(1)
	assert.NotEqual(t, "mutated", w.Name)
}
