package models

import "time"

// ChunkRecord is a persisted policy chunk together with its embedding,
// cached so restarts skip re-extraction and re-embedding of an unchanged
// corpus.
type ChunkRecord struct {
	ID             string
	Fingerprint    string
	Position       int
	Text           string
	SourceDocument string
	Embedding      []float32
	CreatedAt      time.Time
}

// DecisionRecord is an audit entry for one evaluated claim.
type DecisionRecord struct {
	ID                string
	ClaimText         string
	NormalizedText    string
	Decision          string
	Amount            *float64
	Justification     string
	ClauseReferences  []string
	EmergencyOverride bool
	Confidence        float64
	LatencyMS         int64
	CreatedAt         time.Time
}
