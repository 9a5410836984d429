package profile

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxSummaryChars caps the summary so it fits a CLI line block or an
// assistant context entry.
const maxSummaryChars = 2000

func summarize(p Profile) string {
	var parts []string

	// Identity
	pro := p.ProfessionalInfo
	switch {
	case pro.CurrentTitle != "" && pro.CurrentCompany != "":
		parts = append(parts, fmt.Sprintf("%s at %s.", pro.CurrentTitle, pro.CurrentCompany))
	case pro.CurrentTitle != "":
		parts = append(parts, pro.CurrentTitle+".")
	}
	if pro.ExperienceYears > 0 {
		exp := fmt.Sprintf("%d years of experience", pro.ExperienceYears)
		if pro.Industry != "" {
			exp += " in " + pro.Industry
		}
		parts = append(parts, exp+".")
	}
	if p.BasicInfo.Location != "" {
		parts = append(parts, fmt.Sprintf("Based in %s.", p.BasicInfo.Location))
	}

	if len(p.OtherInfo.Skills) > 0 {
		parts = append(parts, fmt.Sprintf("Skills: %s.", strings.Join(p.OtherInfo.Skills, ", ")))
	}
	if len(p.OtherInfo.SoftSkills) > 0 {
		parts = append(parts, fmt.Sprintf("Soft skills: %s.", strings.Join(p.OtherInfo.SoftSkills, ", ")))
	}

	edu := p.Education
	if edu.Degree != "" {
		s := edu.Degree
		if edu.University != "" {
			s += ", " + edu.University
		}
		if edu.GraduationYear > 0 {
			s += fmt.Sprintf(" (%d)", edu.GraduationYear)
		}
		parts = append(parts, "Education: "+s+".")
	}
	if len(edu.Certifications) > 0 {
		parts = append(parts, fmt.Sprintf("Certifications: %s.", strings.Join(edu.Certifications, ", ")))
	}

	// Preferences
	pref := p.JobPreferences
	if len(pref.DesiredRoles) > 0 {
		s := "Looking for: " + strings.Join(pref.DesiredRoles, ", ")
		var how []string
		how = append(how, pref.JobTypes...)
		how = append(how, pref.WorkModes...)
		if len(how) > 0 {
			s += " (" + strings.Join(how, ", ") + ")"
		}
		if len(pref.PreferredLocations) > 0 {
			s += " in " + strings.Join(pref.PreferredLocations, " / ")
		}
		parts = append(parts, s+".")
	}

	if p.Documents.Resume != nil && p.Documents.Resume.FileName != "" {
		parts = append(parts, fmt.Sprintf("Resume: %s.", p.Documents.Resume.FileName))
	}

	if len(parts) == 0 {
		return "Profile: not yet configured."
	}

	summary := strings.Join(parts, " ")
	if len(summary) > maxSummaryChars {
		end := maxSummaryChars
		for end > 0 && !utf8.RuneStart(summary[end]) {
			end--
		}
		if idx := strings.LastIndex(summary[:end], " "); idx > 0 {
			summary = summary[:idx]
		} else {
			summary = summary[:end]
		}
	}
	return summary
}
