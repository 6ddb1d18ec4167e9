package domain

import (
	"fmt"
	"strings"
	"time"
)

type ReportStatus string

const (
	StatusPending    ReportStatus = "Pending"
	StatusInProgress ReportStatus = "In Progress"
	StatusResolved   ReportStatus = "Resolved"
	StatusClosed     ReportStatus = "Closed"
)

func Statuses() []ReportStatus {
	return []ReportStatus{StatusPending, StatusInProgress, StatusResolved, StatusClosed}
}

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Actionable statuses are the ones a cleaner can still pick up or finish.
func (s ReportStatus) Actionable() bool {
	return s == StatusPending || s == StatusInProgress
}

func ActionableStatuses() []ReportStatus {
	return []ReportStatus{StatusPending, StatusInProgress}
}

// AllowsAssignee reports whether assignedTo may be set while a report is in status s.
func (s ReportStatus) AllowsAssignee() bool {
	return s == StatusInProgress || s == StatusResolved
}

// ParseStatus accepts the display names plus the enum-style spellings (IN_PROGRESS, in-progress).
func ParseStatus(v string) (ReportStatus, bool) {
	switch normalizeEnum(v) {
	case "pending":
		return StatusPending, true
	case "inprogress":
		return StatusInProgress, true
	case "resolved":
		return StatusResolved, true
	case "closed":
		return StatusClosed, true
	}
	return "", false
}

type WasteCategory string

const (
	CategoryGarbageOverflow WasteCategory = "Garbage Overflow"
	CategoryIllegalDumping  WasteCategory = "Illegal Dumping"
	CategoryRecyclingIssue  WasteCategory = "Recycling Issue"
	CategoryHazardousWaste  WasteCategory = "Hazardous Waste"
	CategoryDeadAnimal      WasteCategory = "Dead Animal"
	CategoryOther           WasteCategory = "Other"
)

func Categories() []WasteCategory {
	return []WasteCategory{
		CategoryGarbageOverflow,
		CategoryIllegalDumping,
		CategoryRecyclingIssue,
		CategoryHazardousWaste,
		CategoryDeadAnimal,
		CategoryOther,
	}
}

func ParseCategory(v string) (WasteCategory, bool) {
	n := normalizeEnum(v)
	for _, c := range Categories() {
		if normalizeEnum(string(c)) == n {
			return c, true
		}
	}
	return "", false
}

type Priority string

const (
	PriorityLow    Priority = "Low"
	PriorityMedium Priority = "Medium"
	PriorityHigh   Priority = "High"
	PriorityUrgent Priority = "Urgent"
)

func Priorities() []Priority {
	return []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
}

func ParsePriority(v string) (Priority, bool) {
	n := normalizeEnum(v)
	for _, p := range Priorities() {
		if normalizeEnum(string(p)) == n {
			return p, true
		}
	}
	return "", false
}

func normalizeEnum(v string) string {
	r := strings.NewReplacer(" ", "", "_", "", "-", "")
	return strings.ToLower(r.Replace(strings.TrimSpace(v)))
}

type Location struct {
	Lat     float64 `json:"lat" bson:"lat"`
	Lng     float64 `json:"lng" bson:"lng"`
	Address string  `json:"address" bson:"address"`
}

// CoordinateLabel is the address used when reverse geocoding is unavailable.
func (l Location) CoordinateLabel() string {
	return fmt.Sprintf("%v, %v", l.Lat, l.Lng)
}

func (l Location) Valid() bool {
	return l.Lat >= -90 && l.Lat <= 90 && l.Lng >= -180 && l.Lng <= 180
}

type Report struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Category    WasteCategory `json:"category"`
	Priority    Priority      `json:"priority"`
	Status      ReportStatus  `json:"status"`
	Location    Location      `json:"location"`
	Images      []string      `json:"images"`
	ReportedBy  string        `json:"reportedBy"`
	AssignedTo  string        `json:"assignedTo,omitempty"`
	ReportedAt  time.Time     `json:"reportedAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// NewReport is the citizen's submission. Status, assignment and ownership are not part of it.
type NewReport struct {
	Title       string
	Description string
	Category    WasteCategory
	Priority    Priority
	Location    *Location
}

func (n NewReport) Validate() error {
	var problems []string
	if strings.TrimSpace(n.Title) == "" {
		problems = append(problems, "title is required")
	}
	if strings.TrimSpace(n.Description) == "" {
		problems = append(problems, "description is required")
	}
	if _, ok := ParseCategory(string(n.Category)); !ok {
		problems = append(problems, "unknown category")
	}
	if _, ok := ParsePriority(string(n.Priority)); !ok {
		problems = append(problems, "unknown priority")
	}
	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, strings.Join(problems, "; "))
	}
	return nil
}

// Attachment is an uploaded file waiting to be pushed to the object store.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// ReportFilter narrows list queries. Zero values mean "no constraint".
type ReportFilter struct {
	Statuses   []ReportStatus
	Category   WasteCategory
	Priority   Priority
	ReportedBy string
	AssignedTo string
	Limit      int
}

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// EffectiveLimit clamps the requested limit into (0, MaxListLimit].
func (f ReportFilter) EffectiveLimit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	}
	return f.Limit
}

// Matches is the in-process equivalent of the store query, used for display filtering.
func (f ReportFilter) Matches(r Report) bool {
	if len(f.Statuses) > 0 {
		found := false
		for _, s := range f.Statuses {
			if r.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Category != "" && r.Category != f.Category {
		return false
	}
	if f.Priority != "" && r.Priority != f.Priority {
		return false
	}
	if f.ReportedBy != "" && r.ReportedBy != f.ReportedBy {
		return false
	}
	if f.AssignedTo != "" && r.AssignedTo != f.AssignedTo {
		return false
	}
	return true
}

// StatusChange is the only mutation a transition writes: status, assignee and updatedAt.
type StatusChange struct {
	Status     ReportStatus
	AssignedTo string
	UpdatedAt  time.Time
}
