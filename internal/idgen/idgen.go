package idgen

import (
	"github.com/google/uuid"
)

// ID prefixes for different models
const (
	PrefixSession    = "sess_"
	PrefixTask       = "task_"
	PrefixCompletion = "cmp_"
)

// NewSession generates a new session ID with sess_ prefix
func NewSession() string {
	return PrefixSession + uuid.New().String()
}

// NewTask generates a new task ID with task_ prefix
func NewTask() string {
	return PrefixTask + uuid.New().String()
}

// NewCompletion generates a new task completion ID with cmp_ prefix
func NewCompletion() string {
	return PrefixCompletion + uuid.New().String()
}

// New generates a generic UUID without prefix (for internal use only)
func New() string {
	return uuid.New().String()
}
