package models

import "time"

// ContentType is the three-way classification of an incoming message.
type ContentType string

const (
	ContentEvent   ContentType = "event"
	ContentNote    ContentType = "note"
	ContentUnclear ContentType = "unclear"
)

// MaxFieldLength bounds title/location/note content handed downstream.
const MaxFieldLength = 500

// ParsedContent is the unified result shape produced by both the local
// classifier and the GPT parser. Confidence is calibrated per classifier
// and only comparable within the same classifier's own scale.
type ParsedContent struct {
	ContentType ContentType `json:"content_type"`
	Confidence  float64     `json:"confidence"`

	// Event fields
	Title           string     `json:"title,omitempty"`
	StartDatetime   *time.Time `json:"start_datetime,omitempty"`
	EndDatetime     *time.Time `json:"end_datetime,omitempty"`
	DurationMinutes int        `json:"duration_minutes"`
	Location        string     `json:"location,omitempty"`
	Participants    []string   `json:"participants"`

	// Note fields
	NoteContent string `json:"note_content,omitempty"`

	ClarificationNeeded string `json:"clarification_needed,omitempty"`

	// Success is true when a usable start time was derived (events) or the
	// message is a note. NeedsEscalation is set only by the local classifier;
	// GPT results are terminal and never carry it.
	Success         bool `json:"-"`
	NeedsEscalation bool `json:"-"`
}

// Unclear builds a terminal unclear result with a clarification message.
func Unclear(confidence float64, clarification string) ParsedContent {
	return ParsedContent{
		ContentType:         ContentUnclear,
		Confidence:          confidence,
		DurationMinutes:     60,
		Participants:        []string{},
		ClarificationNeeded: clarification,
	}
}
