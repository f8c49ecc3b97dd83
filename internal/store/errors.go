// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNotFound indicates the requested reference, version, or pinpoint does
// not exist.
var ErrNotFound = errors.New("not found")

// OutOfRangeBound names which side of the version coverage an as-of date
// missed.
type OutOfRangeBound string

const (
	BeforeEarliest OutOfRangeBound = "before_earliest"
	AfterLatest    OutOfRangeBound = "after_latest"
)

// OutOfRangeError is returned when an as-of date falls outside a reference's
// version coverage. It carries the covered bounds so callers can suggest a
// valid date.
type OutOfRangeError struct {
	ReferenceID string
	Requested   time.Time
	Bound       OutOfRangeBound
	Earliest    time.Time
	Latest      time.Time
}

func (e *OutOfRangeError) Error() string {
	switch e.Bound {
	case BeforeEarliest:
		return fmt.Sprintf(
			"no version of %s effective on %s: earliest available is %s; retry with a date on or after %s",
			e.ReferenceID, e.Requested.Format("2006-01-02"),
			e.Earliest.Format("2006-01-02"), e.Earliest.Format("2006-01-02"))
	default:
		return fmt.Sprintf(
			"no version of %s effective on %s: latest coverage ends %s; retry with a date on or before %s",
			e.ReferenceID, e.Requested.Format("2006-01-02"),
			e.Latest.Format("2006-01-02"), e.Latest.Format("2006-01-02"))
	}
}

// ValidationError rejects a write that is missing required fields or would
// violate a store invariant. Rejected writes are not stored.
type ValidationError struct {
	// Missing lists the absent required fields, if any.
	Missing []string

	// Reason describes the violated invariant when no fields are missing.
	Reason string
}

func (e *ValidationError) Error() string {
	if len(e.Missing) > 0 {
		return "missing required fields: " + strings.Join(e.Missing, ", ")
	}
	return e.Reason
}

// IsOutOfRange reports whether err is an OutOfRangeError.
func IsOutOfRange(err error) bool {
	var oor *OutOfRangeError
	return errors.As(err, &oor)
}
