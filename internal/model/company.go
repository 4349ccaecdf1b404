// Package model defines the records that flow between pipeline stages.
package model

import "strings"

// Entity is a company being tracked through the pipeline.
type Entity struct {
	Name      string     `json:"name"`
	SourceURL string     `json:"source_url,omitempty"`
	Attrs     Attributes `json:"attrs,omitempty"` // values carried forward from an earlier stage
}

// NewEntity trims the name and returns false if nothing is left.
func NewEntity(name, sourceURL string) (Entity, bool) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Entity{}, false
	}
	return Entity{Name: name, SourceURL: strings.TrimSpace(sourceURL)}, true
}

// Attributes holds the optional per-company values extracted by enrichers.
// A nil field means the value was never observed.
type Attributes struct {
	Rating            *float64 `json:"rating,omitempty"`
	EmployeeCountText *string  `json:"employee_count_text,omitempty"`
	CareersURL        *string  `json:"careers_url,omitempty"`
}

// Empty reports whether no attribute is present.
func (a Attributes) Empty() bool {
	return a.Rating == nil && a.EmployeeCountText == nil && a.CareersURL == nil
}

// EnrichmentRecord is the outcome of one enrichment attempt. A failed attempt
// still yields a record, with Found false and no new attributes.
type EnrichmentRecord struct {
	Name string `json:"name"`
	Attributes
	// Found is set when the enricher extracted at least one of the
	// attributes it is responsible for. It is not persisted.
	Found bool `json:"-"`
	// Blocked is set when the lookup hit an anti-bot interstitial.
	Blocked bool   `json:"-"`
	Cause   string `json:"-"` // miss or failure reason, for logging
}

// AggregatedRecord is the canonical per-name result of max-fusion.
// Zero means "never observed".
type AggregatedRecord struct {
	Name          string  `json:"name"`
	Rating        float64 `json:"rating"`
	EmployeeCount int     `json:"employee_count"`
}

// Float64 returns a pointer to v.
func Float64(v float64) *float64 { return &v }

// String returns a pointer to v.
func String(v string) *string { return &v }
