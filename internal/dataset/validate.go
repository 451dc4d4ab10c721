package dataset

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrEmptyDataset       = errors.New("dataset has no variations")
	ErrInvalidDate        = errors.New("invalid date")
	ErrInvalidVariation   = errors.New("invalid variation")
	ErrDuplicateVariation = errors.New("duplicate variation")
	ErrDuplicateRecord    = errors.New("duplicate record")
	ErrUnsortedDays       = errors.New("days are not strictly ascending")
	ErrNegativeCount      = errors.New("negative count")
)

// ParseDate accepts a plain calendar date or an RFC3339 timestamp and returns
// the calendar date at UTC midnight.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(DateLayout, s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}

// Validate rejects structurally invalid datasets. Conversions above visits
// are not an error; see Anomalies.
func (d *Dataset) Validate() error {
	if len(d.Variations) == 0 {
		return ErrEmptyDataset
	}

	names := make(map[string]bool, len(d.Variations))
	keys := make(map[string]string, len(d.Variations))
	for _, v := range d.Variations {
		if strings.TrimSpace(v.Name) == "" {
			return fmt.Errorf("%w: empty name", ErrInvalidVariation)
		}
		if names[v.Name] {
			return fmt.Errorf("%w: name %q", ErrDuplicateVariation, v.Name)
		}
		names[v.Name] = true

		if other, ok := keys[v.Key()]; ok {
			return fmt.Errorf("%w: %q and %q share key %s", ErrDuplicateVariation, other, v.Name, v.Key())
		}
		keys[v.Key()] = v.Name
	}

	for i, day := range d.Days {
		if day.Date.IsZero() {
			return fmt.Errorf("day %d: %w: missing", i, ErrInvalidDate)
		}
		if i > 0 && !day.Date.After(d.Days[i-1].Date) {
			return fmt.Errorf("%w: %s follows %s", ErrUnsortedDays,
				day.Date.Format(DateLayout), d.Days[i-1].Date.Format(DateLayout))
		}
		for key, n := range day.Visits {
			if n < 0 {
				return fmt.Errorf("%s visits[%s]: %w", day.Date.Format(DateLayout), key, ErrNegativeCount)
			}
		}
		for key, n := range day.Conversions {
			if n < 0 {
				return fmt.Errorf("%s conversions[%s]: %w", day.Date.Format(DateLayout), key, ErrNegativeCount)
			}
		}
	}

	return nil
}
