package common

import (
	"github.com/google/uuid"
)

// NewRequestID generates a correlation ID attached to outbound backend requests
// Format: req_<uuid>
func NewRequestID() string {
	return "req_" + uuid.New().String()
}
