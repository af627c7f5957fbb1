// Package wards holds the static ward reference table, the derived pollution
// status, and the in-memory live overlay store.
package wards

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cleanward/internal/models"
)

const (
	// MinID is the lowest ward number
	MinID = 1
	// MaxID is the highest ward number
	MaxID = 250

	tableSeed = 0x436c65616e57
)

type zoneProfile struct {
	name  string
	score int
	trend float64
}

// Zone baselines; ward scores scatter around them.
var zoneProfiles = []zoneProfile{
	{"North Delhi", 65, -2.3},
	{"South Delhi", 72, 1.5},
	{"East Delhi", 58, -4.1},
	{"West Delhi", 61, 0.8},
	{"Central Delhi", 54, -3.2},
	{"New Delhi", 78, 2.1},
	{"North West", 63, -1.7},
	{"South West", 69, 1.2},
	{"North East", 51, -5.3},
	{"Shahdara", 55, -2.8},
	{"South East", 67, 0.5},
}

var localities = []string{
	"Narela", "Bawana", "Rohini", "Pitampura", "Shalimar Bagh", "Model Town",
	"Civil Lines", "Karol Bagh", "Paharganj", "Chandni Chowk", "Daryaganj",
	"Rajouri Garden", "Janakpuri", "Dwarka", "Najafgarh", "Palam",
	"Vasant Kunj", "Mehrauli", "Saket", "Malviya Nagar", "Hauz Khas",
	"Lajpat Nagar", "Kalkaji", "Okhla", "Sarita Vihar", "Mayur Vihar",
	"Laxmi Nagar", "Preet Vihar", "Shahdara", "Seelampur", "Yamuna Vihar",
	"Karawal Nagar", "Dilshad Garden", "Vivek Vihar", "Patel Nagar",
}

var (
	table []models.Ward
	zones []string
)

func init() {
	table = generate()
	zones = make([]string, len(zoneProfiles))
	for i, z := range zoneProfiles {
		zones[i] = z.name
	}
}

func generate() []models.Ward {
	out := make([]models.Ward, 0, MaxID)
	for id := MinID; id <= MaxID; id++ {
		zone := zoneProfiles[(id-1)*len(zoneProfiles)/MaxID]
		rng := rand.New(rand.NewPCG(tableSeed, uint64(id)))

		sub := func(offset int) int {
			return clamp(zone.score+offset+rng.IntN(31)-15, 0, 100)
		}
		air := sub(-8)
		water := sub(4)
		waste := sub(0)
		noise := sub(2)

		out = append(out, models.Ward{
			ID:             id,
			Name:           fmt.Sprintf("Ward %d - %s", id, localities[(id-1)%len(localities)]),
			Zone:           zone.name,
			AirScore:       air,
			WaterScore:     water,
			WasteScore:     waste,
			NoiseScore:     noise,
			PollutionScore: int(math.Round(float64(air+water+waste+noise) / 4)),
			Trend7d:        round1(zone.trend/4 + rng.Float64()*2 - 1),
			Trend30d:       round1(zone.trend + rng.Float64()*4 - 2),
		})
	}
	return out
}

// All returns a copy of the full table ordered by id
func All() []models.Ward {
	out := make([]models.Ward, len(table))
	copy(out, table)
	return out
}

// GetByID looks up a ward
func GetByID(id int) (models.Ward, bool) {
	if !ValidID(id) {
		return models.Ward{}, false
	}
	return table[id-MinID], true
}

// ValidID reports whether id is inside the ward range
func ValidID(id int) bool {
	return id >= MinID && id <= MaxID
}

// Zones returns the zone names in display order
func Zones() []string {
	out := make([]string, len(zones))
	copy(out, zones)
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(f float64) float64 {
	return math.Round(f*10) / 10
}
