// Package types provides common type definitions for the CleanWard system.
package types

// Role represents the stored authorization role of a profile
type Role string

const (
	// RoleCitizen is a regular resident taking part in green goals
	RoleCitizen Role = "citizen"
	// RoleAdmin is an authority reviewing submissions
	RoleAdmin Role = "admin"
	// RoleNone is the role of an unauthenticated visitor
	RoleNone Role = "none"
)

// Valid reports whether r is a role a profile can hold
func (r Role) Valid() bool {
	return r == RoleCitizen || r == RoleAdmin
}

// DashboardPath returns the dashboard a session with this role lands on
func (r Role) DashboardPath() string {
	switch r {
	case RoleAdmin:
		return "/authority"
	case RoleCitizen:
		return "/citizen"
	default:
		return "/auth"
	}
}

// Sex represents the demographic sex field collected at sign-up
type Sex string

const (
	SexMale   Sex = "male"
	SexFemale Sex = "female"
	SexOther  Sex = "other"
)

// Valid reports whether s is one of the accepted values
func (s Sex) Valid() bool {
	switch s {
	case SexMale, SexFemale, SexOther:
		return true
	}
	return false
}

// TaskStatus represents the lifecycle state of a ledger entry
type TaskStatus string

const (
	// TaskStatusPending is a goal the citizen selected but has not proven yet
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusSubmitted is a goal with uploaded proof awaiting review
	TaskStatusSubmitted TaskStatus = "submitted"
	// TaskStatusVerified is a goal an authority approved (terminal)
	TaskStatusVerified TaskStatus = "verified"
	// TaskStatusRejected is a goal an authority rejected (terminal)
	TaskStatusRejected TaskStatus = "rejected"
)

// CanTransitionTo reports whether moving from s to next is a forward transition
func (s TaskStatus) CanTransitionTo(next TaskStatus) bool {
	switch s {
	case TaskStatusPending:
		return next == TaskStatusSubmitted
	case TaskStatusSubmitted:
		return next == TaskStatusVerified || next == TaskStatusRejected
	default:
		return false
	}
}

// Terminal reports whether no transition leaves s
func (s TaskStatus) Terminal() bool {
	return s == TaskStatusVerified || s == TaskStatusRejected
}

// Active reports whether an entry in this state still occupies its task slot
func (s TaskStatus) Active() bool {
	return s != TaskStatusRejected
}

// TaskCategory groups catalog tasks
type TaskCategory string

const (
	CategoryWaste     TaskCategory = "waste"
	CategoryTree      TaskCategory = "tree"
	CategoryWater     TaskCategory = "water"
	CategoryAwareness TaskCategory = "awareness"
	CategoryAir       TaskCategory = "air"
)

// PollutionStatus is the ordinal category derived from a ward pollution score
type PollutionStatus string

const (
	StatusGood      PollutionStatus = "good"
	StatusModerate  PollutionStatus = "moderate"
	StatusUnhealthy PollutionStatus = "unhealthy"
	StatusSevere    PollutionStatus = "severe"
	StatusHazardous PollutionStatus = "hazardous"
)

// Severity orders statuses from cleanest (0) to worst (4)
func (p PollutionStatus) Severity() int {
	switch p {
	case StatusGood:
		return 0
	case StatusModerate:
		return 1
	case StatusUnhealthy:
		return 2
	case StatusSevere:
		return 3
	default:
		return 4
	}
}

// TrafficStatus is the congestion label reported with live readings
type TrafficStatus string

const (
	TrafficLow      TrafficStatus = "low"
	TrafficModerate TrafficStatus = "moderate"
	TrafficHeavy    TrafficStatus = "heavy"
)

// ServiceError represents a structured error response
type ServiceError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *ServiceError) Error() string {
	return e.Message
}

// NewServiceError builds a ServiceError without details
func NewServiceError(code, message string) *ServiceError {
	return &ServiceError{Code: code, Message: message}
}
