package models

import (
	"errors"
	"fmt"
)

// ErrNotFound reports a missing model version or entity.
var ErrNotFound = errors.New("not found")

// ErrNoActiveModel reports that no model version is currently active.
// Remediation differs from a missing version: train and activate one.
var ErrNoActiveModel = errors.New("no active model version")

// InsufficientHistoryError reports too few observations to build features.
type InsufficientHistoryError struct {
	EntityID string
	Have     int
	Need     int
}

func (e *InsufficientHistoryError) Error() string {
	return fmt.Sprintf("insufficient history for %s: have %d observations, need %d", e.EntityID, e.Have, e.Need)
}

// ValidationError reports an artifact that exists but cannot be loaded,
// or a malformed feature vector.
type ValidationError struct {
	Artifact string
	Err      error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid artifact %s: %v", e.Artifact, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// CacheError reports a storage read failure behind a cache miss. A model
// that cannot be loaded is fatal to prediction, so this propagates.
type CacheError struct {
	Key string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache load failed for %s: %v", e.Key, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }
