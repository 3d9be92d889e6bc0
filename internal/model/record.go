// Package model defines the domain types shared across the ingestion
// pipeline: sources, categories, records, watermarks, and run reporting.
package model

import (
	"encoding/json"
	"time"
)

// Source is an imaging platform (a rover). Static reference data, created
// once and rarely mutated.
type Source struct {
	ID     string
	Name   string
	Status string
	Active bool
}

// Category is a camera/instrument owned by exactly one Source.
// (SourceID, Code) is unique. Normally seeded, but the resolver auto-creates
// a row the first time an unrecognized code appears in provider data.
type Category struct {
	ID          int64
	SourceID    string
	Code        string
	DisplayName string
}

// CoreFields are the provider attributes promoted to queryable columns.
// Every field is optional: providers omit, null, or re-type fields freely,
// and extraction never fails over a single missing attribute.
type CoreFields struct {
	Site         *int
	Drive        *int
	Width        *int
	Height       *int
	MastAz       *float64
	MastEl       *float64
	ImageURL     string
	ThumbnailURL string
}

// CandidateRecord is the canonical shape an extractor produces from one
// provider item, before idempotency filtering and category resolution.
// NaturalKey is the provider-issued identifier, opaque and variable in
// format per source.
type CandidateRecord struct {
	NaturalKey   string
	Unit         int
	CapturedAt   time.Time
	CategoryCode string
	Core         CoreFields
	Raw          json.RawMessage
}

// Record is a durably stored photo. Created only by the batch writer and
// immutable thereafter.
type Record struct {
	ID         int64
	NaturalKey string
	Unit       int
	SourceID   string
	CategoryID int64
	CapturedAt time.Time
	Core       CoreFields
	Raw        json.RawMessage
}

// Watermark is the last unit a source is known to be fully synced through.
// Advanced only after a successful ingestion run for that source.
type Watermark struct {
	SourceID       string
	LastSyncedUnit int
	UpdatedAt      time.Time
}
