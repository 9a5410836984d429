// Package jobs tracks the user's job applications on top of an optimistic
// collection synced with the backend.
package jobs

import (
	"encoding/json"
	"fmt"
	"strconv"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/kalambet/jobtrail/internal/collection"
	"github.com/kalambet/jobtrail/internal/record"
)

// Field names of a job record.
const (
	FieldID          = "id"
	FieldTitle       = "title"
	FieldCompany     = "company"
	FieldLocation    = "location"
	FieldJobType     = "jobType"
	FieldWorkMode    = "workMode"
	FieldStatus      = "applicationStatus"
	FieldNotes       = "notes"
	FieldURL         = "url"
	FieldAnalysis    = "aiAnalysis"
	FieldDescription = "description"
)

// Analysis is the backend's match analysis of a job against the profile.
type Analysis struct {
	SkillMatchPercentage Percent  `json:"skillMatchPercentage"`
	Strengths            []string `json:"strengths,omitempty"`
	Weaknesses           []string `json:"weaknesses,omitempty"`
	CoverLetter          string   `json:"coverLetter,omitempty"`
	EmailDraft           string   `json:"emailDraft,omitempty"`
	AnalyzedAt           string   `json:"analyzedAt,omitempty"`
}

// Percent is a percentage the backend sends either as a number or as
// numeric text such as "72" or "72%".
type Percent float64

func (p *Percent) UnmarshalJSON(b []byte) error {
	var n float64
	if err := json.Unmarshal(b, &n); err == nil {
		*p = Percent(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("percentage %s: %w", b, err)
	}
	n, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(s), "%"), 64)
	if err != nil {
		return fmt.Errorf("percentage %q: %w", s, err)
	}
	*p = Percent(n)
	return nil
}

// Job is a typed view of a job record. Dates are kept as the backend sent
// them.
type Job struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Company      string    `json:"company"`
	Location     string    `json:"location"`
	JobType      string    `json:"jobType,omitempty"`
	WorkMode     string    `json:"workMode,omitempty"`
	Description  string    `json:"description,omitempty"`
	Requirements []string  `json:"requirements,omitempty"`
	URL          string    `json:"url,omitempty"`
	PostedDate   string    `json:"postedDate,omitempty"`
	Status       Status    `json:"applicationStatus"`
	Analysis     *Analysis `json:"aiAnalysis,omitempty"`
	Notes        string    `json:"notes,omitempty"`
	AppliedDate  string    `json:"appliedDate,omitempty"`
}

// FromRecord decodes r. Numeric ids are converted to their string form. A
// field of an unexpected type is left at its zero value rather than failing
// the whole job, so every record in the store has a Job.
func FromRecord(r record.Record) Job {
	var j Job
	if id, ok := r[FieldID]; ok {
		if _, isString := id.(string); !isString {
			r = record.Set(r, FieldID, collection.IDString(id))
		}
	}
	if err := record.Decode(r, &j); err == nil {
		return j
	}
	j = Job{}
	for field, v := range r {
		_ = record.Decode(record.Record{field: v}, &j)
	}
	return j
}

// Match returns the skill match percentage, or -1 when the job has not been
// analyzed.
func (j Job) Match() float64 {
	if j.Analysis == nil {
		return -1
	}
	return float64(j.Analysis.SkillMatchPercentage)
}

// Source returns the registrable domain of the posting URL, such as
// "linkedin.com" for https://www.linkedin.com/jobs/view/1.
func (j Job) Source() string {
	return sourceOf(j.URL)
}

func sourceOf(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return host
	}
	return domain
}
