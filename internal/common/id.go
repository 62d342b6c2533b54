package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique workflow run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewIngestID generates a unique ingestion job ID with the "ing_" prefix
func NewIngestID() string {
	return "ing_" + uuid.New().String()
}
