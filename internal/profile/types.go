package profile

import (
	"fmt"

	"github.com/kalambet/jobtrail/internal/record"
)

// Profile is a typed view of the profile aggregate. Edits go through the
// Manager as path operations on the underlying record.
type Profile struct {
	ID               string           `json:"id,omitempty"`
	BasicInfo        BasicInfo        `json:"basicInfo"`
	ProfessionalInfo ProfessionalInfo `json:"professionalInfo"`
	OtherInfo        OtherInfo        `json:"otherInfo"`
	Education        Education        `json:"education"`
	Documents        Documents        `json:"documents"`
	JobPreferences   JobPreferences   `json:"jobPreferences"`
}

type BasicInfo struct {
	Username   string `json:"username"`
	Age        int    `json:"age,omitempty"`
	Location   string `json:"location"`
	Email      string `json:"email"`
	ProfilePic string `json:"profilePic,omitempty"`
}

type ProfessionalInfo struct {
	CurrentTitle    string `json:"currentTitle"`
	CurrentCompany  string `json:"currentCompany"`
	ExperienceYears int    `json:"experienceYears"`
	Industry        string `json:"industry"`
}

type OtherInfo struct {
	Skills              []string `json:"skills"`
	HobbiesAndInterests []string `json:"hobbiesAndInterests"`
	SoftSkills          []string `json:"softSkills"`
}

type Education struct {
	Degree         string   `json:"degree"`
	GraduationYear int      `json:"graduationYear,omitempty"`
	Certifications []string `json:"certifications"`
	University     string   `json:"university"`
}

// Resume is the uploaded resume document.
type Resume struct {
	URL        string `json:"url"`
	FileName   string `json:"fileName"`
	UploadedAt string `json:"uploadedAt,omitempty"`
}

type Documents struct {
	Resume *Resume `json:"resume,omitempty"`
}

type JobPreferences struct {
	JobTypes           []string `json:"jobTypes"`
	WorkModes          []string `json:"workModes"`
	PreferredLocations []string `json:"preferredLocations"`
	DesiredRoles       []string `json:"desiredRoles"`
}

// List paths accepted by AddItem and RemoveItem.
var ListPaths = []string{
	"otherInfo.skills",
	"otherInfo.hobbiesAndInterests",
	"otherInfo.softSkills",
	"education.certifications",
	"jobPreferences.jobTypes",
	"jobPreferences.workModes",
	"jobPreferences.preferredLocations",
	"jobPreferences.desiredRoles",
}

// FromRecord decodes the profile aggregate.
func FromRecord(r record.Record) (Profile, error) {
	var p Profile
	if err := record.Decode(r, &p); err != nil {
		return Profile{}, fmt.Errorf("decoding profile: %w", err)
	}
	return p, nil
}
