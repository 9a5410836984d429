package jobs

import (
	"errors"
	"fmt"
	"strings"
)

// Status is a job's application status.
type Status string

const (
	StatusSaved     Status = "Saved"
	StatusApplied   Status = "Applied"
	StatusInterview Status = "Interview Scheduled"
	StatusRejected  Status = "Rejected"
	StatusOffer     Status = "Offer Received"
)

// Statuses lists every application status in pipeline order.
var Statuses = []Status{StatusSaved, StatusApplied, StatusInterview, StatusRejected, StatusOffer}

// Job types and work modes the backend knows about.
var (
	JobTypes  = []string{"Full Time", "Part Time", "Internship", "Contract"}
	WorkModes = []string{"Remote", "On-site", "Hybrid"}
)

// ErrInvalid is wrapped by every validation failure in this package.
var ErrInvalid = errors.New("invalid input")

// ParseStatus matches s against the known statuses, ignoring case and
// surrounding space.
func ParseStatus(s string) (Status, error) {
	s = strings.TrimSpace(s)
	for _, st := range Statuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q (want one of %s)", ErrInvalid, s, joinStatuses())
}

func joinStatuses() string {
	names := make([]string, len(Statuses))
	for i, st := range Statuses {
		names[i] = string(st)
	}
	return strings.Join(names, ", ")
}

// ParseJobType returns the canonical spelling of a job type.
func ParseJobType(s string) (string, error) {
	if v, ok := oneOf(strings.TrimSpace(s), JobTypes); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown job type %q (want one of %s)", ErrInvalid, s, strings.Join(JobTypes, ", "))
}

// ParseWorkMode returns the canonical spelling of a work mode.
func ParseWorkMode(s string) (string, error) {
	if v, ok := oneOf(strings.TrimSpace(s), WorkModes); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: unknown work mode %q (want one of %s)", ErrInvalid, s, strings.Join(WorkModes, ", "))
}

func oneOf(v string, set []string) (string, bool) {
	for _, s := range set {
		if strings.EqualFold(v, s) {
			return s, true
		}
	}
	return "", false
}
