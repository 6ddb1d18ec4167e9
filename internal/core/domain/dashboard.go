package domain

// DashboardQuery carries the display filters a dashboard applies to already fetched lists.
type DashboardQuery struct {
	Category WasteCategory
	Priority Priority
	Status   ReportStatus
}

// Filter turns the display filters into a ReportFilter usable with Matches.
func (q DashboardQuery) Filter() ReportFilter {
	f := ReportFilter{Category: q.Category, Priority: q.Priority}
	if q.Status != "" {
		f.Statuses = []ReportStatus{q.Status}
	}
	return f
}

// ReportCounts are status and urgency totals.
type ReportCounts struct {
	Total      int `json:"total"`
	Pending    int `json:"pending"`
	InProgress int `json:"inProgress"`
	Resolved   int `json:"resolved"`
	Closed     int `json:"closed"`
	Urgent     int `json:"urgent"`
}

// ReportStats aggregate every report matching a filter, regardless of list limits.
type ReportStats struct {
	Counts     ReportCounts
	ByCategory map[WasteCategory]int
}

// NewReportStats has an entry for every category.
func NewReportStats() ReportStats {
	st := ReportStats{ByCategory: make(map[WasteCategory]int, len(Categories()))}
	for _, c := range Categories() {
		st.ByCategory[c] = 0
	}
	return st
}

// Add folds n reports sharing status, category and priority into the totals.
func (st *ReportStats) Add(status ReportStatus, category WasteCategory, priority Priority, n int) {
	if n <= 0 {
		return
	}
	st.Counts.Total += n
	switch status {
	case StatusPending:
		st.Counts.Pending += n
	case StatusInProgress:
		st.Counts.InProgress += n
	case StatusResolved:
		st.Counts.Resolved += n
	case StatusClosed:
		st.Counts.Closed += n
	}
	if priority == PriorityUrgent {
		st.Counts.Urgent += n
	}
	if st.ByCategory == nil {
		st.ByCategory = make(map[WasteCategory]int)
	}
	st.ByCategory[category] += n
}

// FilterReports keeps the reports matching f, preserving order.
func FilterReports(reports []Report, f ReportFilter) []Report {
	out := make([]Report, 0, len(reports))
	for _, r := range reports {
		if f.Matches(r) {
			out = append(out, r)
		}
	}
	return out
}

// SectionError is a non-fatal failure of one dashboard section.
type SectionError struct {
	Section string `json:"section"`
	Message string `json:"message"`
}

type CitizenDashboard struct {
	Role             Role           `json:"role"`
	CommunityReports []Report       `json:"communityReports"`
	MyReports        []Report       `json:"myReports"`
	Counts           ReportCounts   `json:"counts"`
	Errors           []SectionError `json:"errors,omitempty"`
}

type CleanerDashboard struct {
	Role              Role           `json:"role"`
	AssignedArea      string         `json:"assignedArea,omitempty"`
	ActionableReports []Report       `json:"actionableReports"`
	AssignedReports   []Report       `json:"assignedReports"`
	UrgentCount       int            `json:"urgentCount"`
	Counts            ReportCounts   `json:"counts"`
	Errors            []SectionError `json:"errors,omitempty"`
}

type AdminDashboard struct {
	Role      Role           `json:"role"`
	Reports   []Report       `json:"reports"`
	Users     []Profile      `json:"users"`
	Cleaners  []Profile      `json:"cleaners"`
	Analytics Analytics      `json:"analytics"`
	Errors    []SectionError `json:"errors,omitempty"`
}

type Analytics struct {
	Reports       ReportCounts          `json:"reports"`
	ByCategory    map[WasteCategory]int `json:"byCategory"`
	TotalCitizens int                   `json:"totalCitizens"`
	TotalCleaners int                   `json:"totalCleaners"`
	TotalAdmins   int                   `json:"totalAdmins"`
}

func BuildAnalytics(stats ReportStats, users []Profile) Analytics {
	if stats.ByCategory == nil {
		stats = NewReportStats()
	}
	a := Analytics{
		Reports:    stats.Counts,
		ByCategory: stats.ByCategory,
	}
	for _, u := range users {
		switch u.Role {
		case RoleCitizen:
			a.TotalCitizens++
		case RoleCleaner:
			a.TotalCleaners++
		case RoleAdmin:
			a.TotalAdmins++
		}
	}
	return a
}
