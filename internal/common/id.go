package common

import (
	"github.com/google/uuid"
)

// NewRunID generates a unique scenario run ID with the "run_" prefix
// Format: run_<uuid>
func NewRunID() string {
	return "run_" + uuid.New().String()
}

// NewSessionID generates an opaque session ID for the surface fixture
func NewSessionID() string {
	return uuid.New().String()
}
