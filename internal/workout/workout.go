// Package workout turns an exported health document into the tennis sessions worth
// reporting and filters out the ones that were already delivered.
package workout

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

const (
	// DefaultMarker is the substring that identifies a tennis session by name.
	DefaultMarker = "网球"
	// DefaultMinDuration is the live monitor's floor in seconds.
	DefaultMinDuration = 180.0
	// NoThreshold disables the duration check.
	NoThreshold = -1.0
)

var ErrMalformedDocument = errors.New("malformed export document")

// Workout is one record from the export. Raw holds the full source record and is handed
// to the analysis collaborator untouched.
type Workout struct {
	ID       string
	Name     string
	Duration float64
	Start    string
	Raw      map[string]any
}

// Document is a decoded export file.
type Document map[string]any

// ParseDocument decodes an export file. Valid JSON that is not an object yields an empty
// document rather than an error.
func ParseDocument(data []byte) (Document, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var parsed any
	if err := decoder.Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	doc, ok := parsed.(map[string]any)
	if !ok {
		return Document{}, nil
	}
	return Document(doc), nil
}

// Filter selects tennis sessions.
type Filter struct {
	Marker      string
	MinDuration float64
}

// LiveFilter is the filter used by the file watcher.
func LiveFilter() Filter {
	return Filter{Marker: DefaultMarker, MinDuration: DefaultMinDuration}
}

// AdHocFilter is used when a single workout is analyzed on request.
func AdHocFilter() Filter {
	return Filter{Marker: DefaultMarker, MinDuration: NoThreshold}
}

// Matches reports whether w's name contains the marker and its duration exceeds the floor.
func (f Filter) Matches(w Workout) bool {
	marker := f.Marker
	if marker == "" {
		marker = DefaultMarker
	}
	if !strings.Contains(norm.NFC.String(w.Name), norm.NFC.String(marker)) {
		return false
	}
	if f.MinDuration < 0 {
		return true
	}
	return w.Duration > f.MinDuration
}

// Extract returns the workouts under data.workouts that match f, in document order. A
// document missing either key, or holding the wrong types, yields nothing.
func Extract(doc Document, f Filter) []Workout {
	data, ok := doc["data"].(map[string]any)
	if !ok {
		return nil
	}
	records, ok := data["workouts"].([]any)
	if !ok {
		return nil
	}
	var out []Workout
	for _, record := range records {
		raw, ok := record.(map[string]any)
		if !ok {
			continue
		}
		w := fromRecord(raw)
		if f.Matches(w) {
			out = append(out, w)
		}
	}
	return out
}

func fromRecord(raw map[string]any) Workout {
	return Workout{
		ID:       toString(raw["id"]),
		Name:     toString(raw["name"]),
		Duration: toFloat(raw["duration"]),
		Start:    toString(raw["start"]),
		Raw:      raw,
	}
}

func toString(v any) string {
	switch typed := v.(type) {
	case string:
		return typed
	case json.Number:
		return typed.String()
	default:
		return ""
	}
}

func toFloat(v any) float64 {
	switch typed := v.(type) {
	case json.Number:
		f, err := typed.Float64()
		if err != nil {
			return 0
		}
		return f
	case float64:
		return typed
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
		if err != nil {
			return 0
		}
		return f
	default:
		return 0
	}
}
