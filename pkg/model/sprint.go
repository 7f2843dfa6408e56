package model

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrMalformedTimestamp is returned when a non-empty timestamp is not RFC3339.
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	// ErrNoSprints is returned when there is no sprint to report on.
	ErrNoSprints = errors.New("no sprints configured")
)

// Sprint is a named closed interval [Since, Until].
type Sprint struct {
	Name  string    `json:"name"  yaml:"name"`
	Since time.Time `json:"since" yaml:"since"`
	Until time.Time `json:"until" yaml:"until"`
}

// Contains reports whether t lies inside the sprint. Both bounds are inclusive.
func (s Sprint) Contains(t time.Time) bool {
	return !t.Before(s.Since) && !t.After(s.Until)
}

// Includes reports whether ts is present and inside the sprint.
// An absent timestamp is never inside.
func (s Sprint) Includes(ts Timestamp) bool {
	if !ts.Valid {
		return false
	}

	return s.Contains(ts.Time)
}

// Timestamp is an optional instant.
type Timestamp struct {
	Time  time.Time
	Valid bool
}

// At returns a present Timestamp.
func At(t time.Time) Timestamp {
	return Timestamp{Time: t, Valid: true}
}

// TimestampOf converts an optional time pointer.
func TimestampOf(t *time.Time) Timestamp {
	if t == nil || t.IsZero() {
		return Timestamp{}
	}

	return At(*t)
}

// ParseTimestamp parses an RFC3339 string. The empty string is an absent timestamp;
// anything else that does not parse is an error.
func ParseTimestamp(s string) (Timestamp, error) {
	if s == "" {
		return Timestamp{}, nil
	}

	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return Timestamp{}, fmt.Errorf("%w: %q", ErrMalformedTimestamp, s)
	}

	return At(t), nil
}

// NotBefore reports whether ts is present and not earlier than bound.
func (ts Timestamp) NotBefore(bound time.Time) bool {
	return ts.Valid && !ts.Time.Before(bound)
}

// String formats the timestamp as RFC3339, or "-" when absent.
func (ts Timestamp) String() string {
	if !ts.Valid {
		return "-"
	}

	return ts.Time.Format(time.RFC3339)
}
