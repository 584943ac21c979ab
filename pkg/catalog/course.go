// Package catalog defines the course records exchanged between the scraper,
// the extraction pipeline and the database loader, plus helpers for the
// on-disk corpus of per-course JSON files.
package catalog

import (
	"encoding/json"
	"strings"
)

// ScheduleEntry is one meeting pattern of a course section as returned by a
// language model. Values are kept verbatim; normalization happens when they
// are loaded or compared.
type ScheduleEntry struct {
	StartDate  string `json:"start_date" yaml:"start_date" validate:"required" description:"First class date, YYYY-MM-DD"`
	EndDate    string `json:"end_date" yaml:"end_date" validate:"required" description:"Last class date, YYYY-MM-DD"`
	DaysOfWeek string `json:"day_or_days_of_week" yaml:"day_or_days_of_week" validate:"required" description:"Full day names, e.g. Tuesday, Thursday"`
	StartTime  string `json:"start_time" yaml:"start_time" description:"Start time, HH:MM AM/PM"`
	EndTime    string `json:"end_time" yaml:"end_time" description:"End time, HH:MM AM/PM"`
}

// ScheduleList is the object language models are asked to return.
type ScheduleList struct {
	Schedules []ScheduleEntry `json:"schedules" yaml:"schedules" validate:"required,dive" description:"Every schedule found in the input"`
}

// Course is a scraped course listing plus the schedules extracted from its
// section text.
type Course struct {
	Code         string          `json:"course_code" yaml:"course_code"`
	Name         string          `json:"course_name" yaml:"course_name"`
	DeliveryType string          `json:"course_delivery_type,omitempty" yaml:"course_delivery_type,omitempty"`
	Prereqs      string          `json:"prereqs,omitempty" yaml:"prereqs,omitempty"`
	Hours        string          `json:"hours,omitempty" yaml:"hours,omitempty"`
	Fees         string          `json:"fees,omitempty" yaml:"fees,omitempty"`
	Description  string          `json:"course_description,omitempty" yaml:"course_description,omitempty"`
	Link         string          `json:"course_link,omitempty" yaml:"course_link,omitempty"`
	Sections     []string        `json:"course_sections" yaml:"course_sections"`
	Schedules    []ScheduleEntry `json:"schedules" yaml:"schedules"`

	// CleanedResponse holds the serialized {"schedules":[...]} response from
	// the last successful extraction.
	CleanedResponse string `json:"cleaned_response_schedules,omitempty" yaml:"cleaned_response_schedules,omitempty"`
}

// HasSections reports whether the course carries any non-blank section text.
func (c *Course) HasSections() bool {
	for _, s := range c.Sections {
		if strings.TrimSpace(s) != "" {
			return true
		}
	}
	return false
}

// IsProgram reports whether the record describes a multi-course program
// rather than a single course.
func (c *Course) IsProgram() bool {
	return strings.Contains(strings.ToLower(c.Name), "program")
}

// Extractable reports whether the record should be sent through extraction.
func (c *Course) Extractable() bool {
	return strings.TrimSpace(c.Code) != "" && !c.IsProgram()
}

// CachedSchedules decodes CleanedResponse. ok is false when it is absent,
// malformed or holds no schedules.
func (c *Course) CachedSchedules() ([]ScheduleEntry, bool) {
	if strings.TrimSpace(c.CleanedResponse) == "" {
		return nil, false
	}
	var list ScheduleList
	if err := json.Unmarshal([]byte(c.CleanedResponse), &list); err != nil {
		return nil, false
	}
	if len(list.Schedules) == 0 {
		return nil, false
	}
	return list.Schedules, true
}

// SetSchedules attaches schedules and records them as the cleaned response.
func (c *Course) SetSchedules(entries []ScheduleEntry) error {
	if entries == nil {
		entries = []ScheduleEntry{}
	}
	data, err := json.Marshal(ScheduleList{Schedules: entries})
	if err != nil {
		return err
	}
	c.Schedules = entries
	c.CleanedResponse = string(data)
	return nil
}

// ClearSchedules attaches an empty schedule list without touching the
// cleaned response.
func (c *Course) ClearSchedules() {
	c.Schedules = []ScheduleEntry{}
}
