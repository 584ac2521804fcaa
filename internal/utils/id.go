package utils

import "github.com/google/uuid"

// NewID returns a random identifier for pending sends and stream subscribers.
func NewID() string {
	return uuid.NewString()
}
