package models

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

// PlaylistURLTemplate is the public link for a playlist uuid.
const PlaylistURLTemplate = "https://tidal.com/browse/playlist/%s"

// tidalTimeLayout is the timestamp layout TIDAL uses (numeric offset without a colon).
const tidalTimeLayout = "2006-01-02T15:04:05.000-0700"

// Playlist is playlist metadata as exposed to tools and the CLI.
type Playlist struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	TrackCount  int       `json:"track_count"`
	Duration    int       `json:"duration"`
	Created     time.Time `json:"created,omitzero"`
	LastUpdated time.Time `json:"last_updated,omitzero"`
	URL         string    `json:"url"`
}

// Timestamp decodes both TIDAL's offset format and RFC 3339.
type Timestamp struct {
	time.Time
}

func (ts *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		ts.Time = time.Time{}
		return nil
	}

	raw, err := strconv.Unquote(string(data))
	if err != nil {
		return fmt.Errorf("timestamp must be a string: %w", err)
	}
	if raw == "" {
		ts.Time = time.Time{}
		return nil
	}

	for _, layout := range []string{tidalTimeLayout, time.RFC3339Nano} {
		if t, err := time.Parse(layout, raw); err == nil {
			ts.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognised timestamp %q", raw)
}

// TidalPlaylist mirrors the playlist object returned by the TIDAL v1 API.
type TidalPlaylist struct {
	UUID           string    `json:"uuid"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	NumberOfTracks int       `json:"numberOfTracks"`
	Duration       int       `json:"duration"`
	Created        Timestamp `json:"created"`
	LastUpdated    Timestamp `json:"lastUpdated"`
}

// FormatPlaylist converts an upstream playlist.
func FormatPlaylist(raw TidalPlaylist) Playlist {
	return Playlist{
		ID:          raw.UUID,
		Title:       raw.Title,
		Description: raw.Description,
		TrackCount:  raw.NumberOfTracks,
		Duration:    raw.Duration,
		Created:     raw.Created.Time,
		LastUpdated: raw.LastUpdated.Time,
		URL:         fmt.Sprintf(PlaylistURLTemplate, raw.UUID),
	}
}
