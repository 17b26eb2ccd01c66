package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// TrackURLTemplate is the public listen link for a track id.
const TrackURLTemplate = "https://tidal.com/browse/track/%s?u"

// Unknown fills missing artist and album names.
const Unknown = "Unknown"

// TrackID identifies a TIDAL track. Accepts both JSON strings and numbers.
type TrackID string

// UnmarshalJSON decodes "123" and 123 alike.
func (id *TrackID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = TrackID(strings.TrimSpace(s))
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("track id must be a string or integer: %w", err)
	}
	if _, err := n.Int64(); err != nil {
		return fmt.Errorf("track id must be an integer, got %s", n)
	}
	*id = TrackID(n.String())
	return nil
}

// MarshalJSON writes numeric ids as JSON numbers, anything else as a string.
func (id TrackID) MarshalJSON() ([]byte, error) {
	if id.IsNumeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

// IsNumeric reports whether id is a canonical base-10 integer, the shape TIDAL uses.
func (id TrackID) IsNumeric() bool {
	n, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil && strconv.FormatInt(n, 10) == string(id)
}

func (id TrackID) String() string { return string(id) }

// ParseTrackIDs converts raw tool/CLI arguments, dropping blanks.
func ParseTrackIDs(raw []string) []TrackID {
	ids := make([]TrackID, 0, len(raw))
	for _, r := range raw {
		if r = strings.TrimSpace(r); r != "" {
			ids = append(ids, TrackID(r))
		}
	}
	return ids
}

// Track is the formatted view of a TIDAL track.
//
// SourceSeedID is set only on recommendation candidates and names the seed whose radio produced the track.
type Track struct {
	ID           TrackID  `json:"id"`
	Title        string   `json:"title"`
	Artist       string   `json:"artist"`
	Album        string   `json:"album"`
	Duration     int      `json:"duration"`
	URL          string   `json:"url"`
	SourceSeedID *TrackID `json:"source_seed_id,omitempty"`
}

// TrackURL derives the listen link for id.
func TrackURL(id TrackID) string {
	return fmt.Sprintf(TrackURLTemplate, id)
}

// FormatTrack converts an upstream track. A nil seed leaves SourceSeedID unset.
func FormatTrack(raw TidalTrack, seed *TrackID) Track {
	t := Track{
		ID:       raw.ID,
		Title:    raw.Title,
		Artist:   raw.ArtistName(),
		Album:    Unknown,
		Duration: raw.Duration,
		URL:      TrackURL(raw.ID),
	}
	if raw.Album != nil && raw.Album.Title != "" {
		t.Album = raw.Album.Title
	}
	if seed != nil {
		s := *seed
		t.SourceSeedID = &s
	}
	return t
}

// FormatTracks formats every track in raw with the same seed.
func FormatTracks(raw []TidalTrack, seed *TrackID) []Track {
	tracks := make([]Track, 0, len(raw))
	for _, r := range raw {
		tracks = append(tracks, FormatTrack(r, seed))
	}
	return tracks
}

// IDs returns the ids of tracks in order.
func IDs(tracks []Track) []TrackID {
	ids := make([]TrackID, len(tracks))
	for i, t := range tracks {
		ids[i] = t.ID
	}
	return ids
}

// TidalTrack mirrors the track object returned by the TIDAL v1 API.
type TidalTrack struct {
	ID       TrackID       `json:"id"`
	Title    string        `json:"title"`
	Duration int           `json:"duration"`
	Version  *string       `json:"version"`
	Artist   *TidalArtist  `json:"artist"`
	Artists  []TidalArtist `json:"artists"`
	Album    *TidalAlbum   `json:"album"`
	URL      string        `json:"url"`
}

// ArtistName prefers the main artist, then the first credited artist, then [Unknown].
func (t TidalTrack) ArtistName() string {
	if t.Artist != nil && t.Artist.Name != "" {
		return t.Artist.Name
	}
	for _, a := range t.Artists {
		if a.Name != "" {
			return a.Name
		}
	}
	return Unknown
}

// TidalArtist is an artist credit on a track.
type TidalArtist struct {
	ID   json.Number `json:"id"`
	Name string      `json:"name"`
	Type string      `json:"type"`
}

// TidalAlbum is the album reference on a track.
type TidalAlbum struct {
	ID    json.Number `json:"id"`
	Title string      `json:"title"`
	Cover string      `json:"cover"`
}
