// Package catalog holds the fixed list of green actions citizens can adopt.
package catalog

import (
	"github.com/cleanward/internal/models"
	"github.com/cleanward/internal/types"
)

// CustomTaskID is the repeatable open-ended task. Its title comes from the citizen.
const CustomTaskID = "custom"

// DefaultAward is offered to reviewers when a task carries no points
const DefaultAward = 10

var tasks = []models.Task{
	{ID: "sapling-001", Title: "Plant a Sapling", Description: "Plant a native sapling in your ward and photograph it in the ground", Category: types.CategoryTree, Points: 50},
	{ID: "waste-001", Title: "Segregate Household Waste for a Week", Description: "Keep wet, dry and hazardous waste separate for seven days", Category: types.CategoryWaste, Points: 30},
	{ID: "waste-002", Title: "Join a Ward Clean-up Drive", Description: "Take part in an organised clean-up of a street, park or drain", Category: types.CategoryWaste, Points: 40},
	{ID: "water-001", Title: "Fix a Leaking Tap", Description: "Repair a leaking tap or pipe at home or in a public space", Category: types.CategoryWater, Points: 20},
	{ID: "water-002", Title: "Install a Rainwater Harvesting Barrel", Description: "Set up a barrel to collect rooftop rainwater", Category: types.CategoryWater, Points: 60},
	{ID: "awareness-001", Title: "Attend a Pollution Awareness Workshop", Description: "Attend a workshop run by the ward office or a registered NGO", Category: types.CategoryAwareness, Points: 25},
	{ID: "awareness-002", Title: "Report Open Burning", Description: "Report an instance of open garbage or leaf burning to the ward office", Category: types.CategoryAwareness, Points: 15},
	{ID: "air-001", Title: "Commute by Public Transport for a Week", Description: "Use metro, bus or cycle instead of a private vehicle for seven days", Category: types.CategoryAir, Points: 35},
	{ID: "air-002", Title: "Carpool to Work", Description: "Share rides to work with colleagues or neighbours for a week", Category: types.CategoryAir, Points: 20},
	{ID: CustomTaskID, Title: "Custom Green Action", Description: "Describe any other green action you completed", Category: types.CategoryAwareness, Points: 0},
}

var byID = func() map[string]models.Task {
	m := make(map[string]models.Task, len(tasks))
	for _, t := range tasks {
		m[t.ID] = t
	}
	return m
}()

// All returns the catalog in display order
func All() []models.Task {
	out := make([]models.Task, len(tasks))
	copy(out, tasks)
	return out
}

// Get looks up a task by id
func Get(id string) (models.Task, bool) {
	t, ok := byID[id]
	return t, ok
}

// IsCustom reports whether id is the custom sentinel
func IsCustom(id string) bool {
	return id == CustomTaskID
}

// DefaultPoints is the award pre-filled for reviewers
func DefaultPoints(t models.Task) int {
	if t.Points > 0 {
		return t.Points
	}
	return DefaultAward
}

// DisplayTitle is the custom title for custom entries, the catalog title otherwise
func DisplayTitle(entry models.UserTask) string {
	if IsCustom(entry.TaskID) && entry.SubmissionText != nil && *entry.SubmissionText != "" {
		return *entry.SubmissionText
	}
	if t, ok := byID[entry.TaskID]; ok {
		return t.Title
	}
	return entry.TaskID
}

// ListAvailableTasks returns the catalog minus tasks that already have a
// non-rejected entry in ledger. The custom task is always offered.
func ListAvailableTasks(ledger []models.UserTask) []models.Task {
	taken := make(map[string]bool, len(ledger))
	for _, e := range ledger {
		if e.Status.Active() {
			taken[e.TaskID] = true
		}
	}

	out := make([]models.Task, 0, len(tasks))
	for _, t := range tasks {
		if IsCustom(t.ID) || !taken[t.ID] {
			out = append(out, t)
		}
	}
	return out
}
