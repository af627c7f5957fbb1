package types

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

var allStatuses = []TaskStatus{TaskStatusPending, TaskStatusSubmitted, TaskStatusVerified, TaskStatusRejected}

func rank(s TaskStatus) int {
	switch s {
	case TaskStatusPending:
		return 0
	case TaskStatusSubmitted:
		return 1
	default:
		return 2
	}
}

// Transitions never move backwards and never leave a terminal state
func TestTaskStatusTransitionsAreForwardOnly(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("transitions strictly increase rank", prop.ForAll(
		func(i, j int) bool {
			from, to := allStatuses[i], allStatuses[j]
			if !from.CanTransitionTo(to) {
				return true
			}
			return rank(to) > rank(from) && !from.Terminal()
		},
		gen.IntRange(0, len(allStatuses)-1),
		gen.IntRange(0, len(allStatuses)-1),
	))

	properties.TestingRun(t)
}

func TestTaskStatusTransitions(t *testing.T) {
	tests := []struct {
		from TaskStatus
		to   TaskStatus
		want bool
	}{
		{TaskStatusPending, TaskStatusSubmitted, true},
		{TaskStatusPending, TaskStatusVerified, false},
		{TaskStatusSubmitted, TaskStatusVerified, true},
		{TaskStatusSubmitted, TaskStatusRejected, true},
		{TaskStatusSubmitted, TaskStatusPending, false},
		{TaskStatusVerified, TaskStatusRejected, false},
		{TaskStatusRejected, TaskStatusPending, false},
	}

	for _, tt := range tests {
		if got := tt.from.CanTransitionTo(tt.to); got != tt.want {
			t.Errorf("%s -> %s: got %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRoleDashboardPath(t *testing.T) {
	if RoleAdmin.DashboardPath() != "/authority" {
		t.Errorf("admin dashboard = %s", RoleAdmin.DashboardPath())
	}
	if RoleCitizen.DashboardPath() != "/citizen" {
		t.Errorf("citizen dashboard = %s", RoleCitizen.DashboardPath())
	}
	if RoleNone.Valid() {
		t.Error("none must not be a storable role")
	}
}
