package utils

import (
	"github.com/google/uuid"
)

// GenerateID returns a new time-ordered identifier (UUIDv7), falling back to
// a random UUIDv4 if the clock source fails.
func GenerateID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
