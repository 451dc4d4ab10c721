package pipeline

import (
	"errors"
	"fmt"
)

// Zoom levels are percentages. The UI steps between MinZoom and MaxZoom;
// ApplyZoom itself accepts any positive level.
const (
	MinZoom     = 50
	MaxZoom     = 200
	ZoomStep    = 25
	DefaultZoom = 100
)

// minWindow is the smallest window a zoom can produce.
const minWindow = 2

var ErrInvalidZoom = errors.New("zoom level must be positive")

// OnScale reports whether zoom is one of the UI steps.
func OnScale(zoom int) bool {
	return zoom >= MinZoom && zoom <= MaxZoom && (zoom-MinZoom)%ZoomStep == 0
}

// WindowSize returns how many trailing buckets a zoom level keeps out of total.
func WindowSize(total, zoom int) (int, error) {
	if zoom <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidZoom, zoom)
	}
	if zoom == DefaultZoom {
		return total, nil
	}
	return max(total*100/zoom, minWindow), nil
}

// ApplyZoom returns the trailing window of buckets for a zoom level.
func ApplyZoom(buckets []Bucket, zoom int) ([]Bucket, error) {
	size, err := WindowSize(len(buckets), zoom)
	if err != nil {
		return nil, err
	}
	if zoom == DefaultZoom {
		return buckets, nil
	}
	start := max(0, len(buckets)-size)
	return buckets[start:], nil
}
