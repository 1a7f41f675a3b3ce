package workout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) Document {
	t.Helper()
	doc, err := ParseDocument([]byte(raw))
	require.NoError(t, err)
	return doc
}

func TestExtractScenarioSingleTennisWorkout(t *testing.T) {
	doc := mustParse(t, `{"data":{"workouts":[{"id":"a","name":"网球训练","duration":200,"start":"2024-01-01 10:00:00"}]}}`)

	got := Extract(doc, LiveFilter())

	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "网球训练", got[0].Name)
	assert.Equal(t, 200.0, got[0].Duration)
	assert.Equal(t, "2024-01-01 10:00:00", got[0].Start)
	assert.Equal(t, "a", got[0].Raw["id"])
}

func TestExtractExcludesAtOrBelowFloorRegardlessOfName(t *testing.T) {
	doc := mustParse(t, `{"data":{"workouts":[
		{"id":"short","name":"网球训练","duration":150,"start":"2024-01-01 10:00:00"},
		{"id":"edge","name":"网球","duration":180,"start":"2024-01-01 11:00:00"},
		{"id":"missing","name":"网球"}
	]}}`)

	assert.Empty(t, Extract(doc, LiveFilter()))
}

func TestExtractRequiresMarker(t *testing.T) {
	doc := mustParse(t, `{"data":{"workouts":[
		{"id":"run","name":"户外跑步","duration":3600,"start":"2024-01-01 07:00:00"},
		{"id":"ten","name":"室内网球","duration":3600,"start":"2024-01-01 08:00:00"}
	]}}`)

	got := Extract(doc, LiveFilter())
	require.Len(t, got, 1)
	assert.Equal(t, "ten", got[0].ID)
}

func TestExtractCustomMarker(t *testing.T) {
	doc := mustParse(t, `{"data":{"workouts":[{"id":"t","name":"Outdoor Tennis","duration":900}]}}`)

	got := Extract(doc, Filter{Marker: "Tennis", MinDuration: DefaultMinDuration})
	require.Len(t, got, 1)
}

func TestExtractAdHocFilterIgnoresDuration(t *testing.T) {
	doc := mustParse(t, `{"data":{"workouts":[{"id":"a","name":"网球","duration":5},{"id":"b","name":"网球"}]}}`)

	assert.Len(t, Extract(doc, AdHocFilter()), 2)
}

func TestExtractToleratesDeviatingDocuments(t *testing.T) {
	for name, raw := range map[string]string{
		"empty object":      `{}`,
		"no workouts":       `{"data":{}}`,
		"data not object":   `{"data":[1,2]}`,
		"workouts not list": `{"data":{"workouts":{"id":"a"}}}`,
		"non object items":  `{"data":{"workouts":["a",1,null]}}`,
		"top level array":   `[{"data":{}}]`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Empty(t, Extract(mustParse(t, raw), LiveFilter()))
		})
	}
}

func TestExtractReadsStringDurationAndNumericID(t *testing.T) {
	doc := mustParse(t, `{"data":{"workouts":[{"id":42,"name":"网球","duration":"600.5","start":"x"}]}}`)

	got := Extract(doc, LiveFilter())
	require.Len(t, got, 1)
	assert.Equal(t, "42", got[0].ID)
	assert.Equal(t, 600.5, got[0].Duration)
}

func TestParseDocumentRejectsInvalidJSON(t *testing.T) {
	_, err := ParseDocument([]byte(`{"data":`))
	assert.ErrorIs(t, err, ErrMalformedDocument)
}
