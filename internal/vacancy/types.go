// Package vacancy defines core types shared across subsystems.
package vacancy

import "time"

// Vacancy is one external job listing mirrored into the catalog.
type Vacancy struct {
	// ExternalID is the listing's stable identifier on the source site.
	ExternalID string `json:"external_id"`
	// InternalID is the catalog row ID, 0 until the vacancy has been
	// committed at least once.
	InternalID int64 `json:"internal_id,omitempty"`

	Title       string     `json:"title,omitempty"`
	Employer    string     `json:"employer,omitempty"`
	SalaryMin   float64    `json:"salary_min"`
	SalaryMax   float64    `json:"salary_max"`
	HourlyRate  bool       `json:"hourly_rate"`
	Remote      bool       `json:"remote"`
	Published   *time.Time `json:"published,omitempty"`
	Expires     *time.Time `json:"expires,omitempty"`
	CountryCode string     `json:"country_code,omitempty"`
	CityName    string     `json:"city_name,omitempty"`
	Description string     `json:"description,omitempty"`

	// Summary holds extracted facts; nil until the vacancy is fully fetched
	// and classified.
	Summary *Summary `json:"summary,omitempty"`

	// FullyFetched is false while only list-level fields are populated.
	FullyFetched bool `json:"fully_fetched"`
}

// Summary captures the structured facts extracted from a vacancy's text.
type Summary struct {
	// Languages lists the spoken/written languages the listing is offered
	// in, taken from the site's structured language tags. Not populated by
	// text classification.
	Languages []string `json:"languages"`

	ProgrammingLanguages []string `json:"programming_languages"`
	Frameworks           []string `json:"frameworks"`
	Technologies         []string `json:"technologies"`
	BusinessSoftware     []string `json:"business_software"`
	GeneralKeywords      []string `json:"general_keywords"`

	// YearsExperience is the maximum required experience stated in the
	// text, 0 when not stated.
	YearsExperience float64 `json:"years_experience"`
}

// Listing is the detail-level payload a source adapter resolves for one
// vacancy. ClassifyText carries the concatenated searchable text the site
// exposes (title, skill tags, description) so the classification engine
// does not need to know site-specific field layouts.
type Listing struct {
	Vacancy      Vacancy
	ClassifyText string
	Languages    []string
}

// Reserved is one queue item handed out by a reservation call.
type Reserved struct {
	ExternalID string
	InternalID int64
}

// InternalIDs extracts the catalog row IDs from a reserved batch.
func InternalIDs(batch []Reserved) []int64 {
	ids := make([]int64, 0, len(batch))
	for _, r := range batch {
		ids = append(ids, r.InternalID)
	}
	return ids
}
