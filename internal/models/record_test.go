package models

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_String(t *testing.T) {
	tests := []struct {
		name string
		ts   Timestamp
		want string
	}{
		{"zero", Timestamp{}, ""},
		{"whole seconds", NewTimestamp(time.Date(2024, 1, 1, 9, 30, 0, 0, time.Local)), "2024-01-01T09:30:00"},
		{"microseconds", NewTimestamp(time.Date(2024, 1, 1, 9, 30, 0, 1500, time.Local)), "2024-01-01T09:30:00.000001"},
		{"utc keeps zone", NewTimestamp(time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)), "2024-01-01T09:30:00Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ts.String())
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	local := time.Date(2024, 1, 1, 9, 30, 0, 0, time.Local)
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-01T09:30:00", local},
		{"2024-01-01 09:30:00", local},
		{"2024-01-01T09:30", local},
		{"2024-01-01T09:30:00.123456", local.Add(123456 * time.Microsecond)},
		{"2024-01-01T09:30:00Z", time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)},
		{"2024-01-01T09:30:00+00:00", time.Date(2024, 1, 1, 9, 30, 0, 0, time.UTC)},
		{"2024-01-01", time.Date(2024, 1, 1, 0, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTimestamp(tt.in)
			require.NoError(t, err)
			assert.True(t, got.Equal(tt.want), "got %v, want %v", got.Time, tt.want)
		})
	}

	_, err := ParseTimestamp("yesterday")
	assert.Error(t, err)
	got, err := ParseTimestamp("")
	require.NoError(t, err)
	assert.True(t, got.IsZero())
}

func TestTimestamp_JSONRoundTrip(t *testing.T) {
	ts := NewTimestamp(time.Date(2025, 6, 30, 18, 5, 7, 250000000, time.Local))
	data, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2025-06-30T18:05:07.250000"`, string(data))

	var back Timestamp
	require.NoError(t, json.Unmarshal(data, &back))
	assert.True(t, back.Equal(ts.Time))

	require.NoError(t, json.Unmarshal([]byte("null"), &back))
	assert.True(t, back.IsZero())
}

func TestRecord_CreatedAtOmittedWhenZero(t *testing.T) {
	data, err := json.Marshal(&Record{Tone: "casual"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "created_at")
}

func TestParsePlatform(t *testing.T) {
	tests := map[string]Platform{
		"Facebook":  PlatformFacebook,
		"LinkedIn":  PlatformLinkedIn,
		"instagram": PlatformInstagram,
		"Twitter/X": PlatformTwitter,
		"pdf":       PlatformPDF,
		"":          "",
		"Test":      PlatformUnknown,
	}
	for in, want := range tests {
		assert.Equal(t, want, ParsePlatform(in), "ParsePlatform(%q)", in)
	}

	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{"platform":"Twitter/X"}`), &rec))
	assert.Equal(t, PlatformTwitter, rec.Platform)
	assert.True(t, rec.Platform.IsSocial())
	assert.False(t, PlatformHTML.IsSocial())
}

func TestParseFileType(t *testing.T) {
	ft, ok := ParseFileType("Markdown")
	assert.True(t, ok)
	assert.Equal(t, FileTypeMarkdown, ft)
	ft, ok = ParseFileType("md")
	assert.True(t, ok)
	assert.Equal(t, FileTypeMarkdown, ft)
	_, ok = ParseFileType("docx")
	assert.False(t, ok)
}

func TestContent_Compose(t *testing.T) {
	c := Content{
		Hook:         "H",
		Body:         []string{"P1", " ", "P2"},
		CallToAction: "CTA",
		Hashtags:     []string{"#a", "#b"},
	}
	assert.Equal(t, "H\n\nP1\n\nP2\n\nCTA\n\n#a #b", c.Compose())
	assert.Equal(t, "", (&Content{}).Compose())
}

func TestNormalizeHashtags(t *testing.T) {
	got := NormalizeHashtags([]string{"viaje", "#Viaje", " #playa ", "", "##"})
	assert.Equal(t, []string{"#viaje", "#playa"}, got)
	assert.Nil(t, NormalizeHashtags(nil))
}

func TestRecord_CloneAndStripArchive(t *testing.T) {
	rec := &Record{
		Content:   Content{Title: "T", Body: []string{"a"}},
		UserSpecs: &UserSpecs{Tone: "casual"},
		FileType:  FileTypeHTML,
		Filename:  "historia_20240101_093000.html",
		Filepath:  "/tmp/historia_20240101_093000.html",
	}
	c := rec.StripArchive()
	c.Content.Body[0] = "changed"
	c.UserSpecs.Tone = "formal"

	assert.Equal(t, "a", rec.Content.Body[0])
	assert.Equal(t, "casual", rec.UserSpecs.Tone)
	assert.Empty(t, c.Filename)
	assert.Empty(t, c.FileType)
	assert.Equal(t, FileTypeHTML, rec.FileType)
}

func TestRecord_DisplayTitle(t *testing.T) {
	assert.Equal(t, UntitledStory, (&Record{}).DisplayTitle())
	assert.Equal(t, "Hola", (&Record{Content: Content{Title: " Hola "}}).DisplayTitle())
}

func TestResult(t *testing.T) {
	ok := OK("id-1")
	assert.True(t, ok.Success)
	assert.NoError(t, ok.Err())

	failed := From("", assert.AnError)
	assert.False(t, failed.Success)
	assert.Equal(t, assert.AnError.Error(), failed.Error)
	assert.EqualError(t, failed.Err(), assert.AnError.Error())

	wrapped := Fail[string](fmt.Errorf("get: %w", assert.AnError))
	assert.ErrorIs(t, wrapped.Err(), assert.AnError)

	data, err := json.Marshal(Fail[int](nil))
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"unknown error"}`, string(data))

	var decoded Result[int]
	require.NoError(t, json.Unmarshal([]byte(`{"success":false,"error":"caído"}`), &decoded))
	assert.EqualError(t, decoded.Err(), "caído")
}
