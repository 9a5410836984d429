package jobs

import (
	"net/url"

	"github.com/kalambet/jobtrail/internal/collection"
)

// Filters narrows the job list. Blank fields and the legacy "all" value
// place no constraint.
type Filters struct {
	Query    string `json:"query,omitempty"`
	JobType  string `json:"jobType,omitempty"`
	WorkMode string `json:"workMode,omitempty"`
	Status   string `json:"status,omitempty"`
	Location string `json:"location,omitempty"`
}

// FiltersFromQuery reads filters from URL query parameters.
func FiltersFromQuery(q url.Values) Filters {
	return Filters{
		Query:    q.Get("query"),
		JobType:  q.Get("jobType"),
		WorkMode: q.Get("workMode"),
		Status:   q.Get("status"),
		Location: q.Get("location"),
	}
}

// Predicate converts f into a collection predicate. The query matches title
// and company; location matches as a substring.
func (f Filters) Predicate() collection.Predicate {
	return collection.Predicate{
		Query:       collection.ParseCriterion(f.Query),
		QueryFields: []string{FieldTitle, FieldCompany},
		Exact: []collection.FieldCriterion{
			{Field: FieldJobType, Value: collection.ParseCriterion(f.JobType)},
			{Field: FieldWorkMode, Value: collection.ParseCriterion(f.WorkMode)},
			{Field: FieldStatus, Value: collection.ParseCriterion(f.Status)},
		},
		Contains: []collection.FieldCriterion{
			{Field: FieldLocation, Value: collection.ParseCriterion(f.Location)},
		},
	}
}

// Dashboard is the summary shown above the job list.
type Dashboard struct {
	Total      int `json:"total"`
	Saved      int `json:"saved"`
	Applied    int `json:"applied"`
	Interviews int `json:"interviews"`
	Offers     int `json:"offers"`
	Rejected   int `json:"rejected"`
}

// DashboardOf derives the dashboard from per-status counts.
func DashboardOf(st collection.Stats) Dashboard {
	return Dashboard{
		Total:      st.Total,
		Saved:      st.Count(string(StatusSaved)),
		Applied:    st.Count(string(StatusApplied)),
		Interviews: st.Count(string(StatusInterview)),
		Offers:     st.Count(string(StatusOffer)),
		Rejected:   st.Count(string(StatusRejected)),
	}
}
