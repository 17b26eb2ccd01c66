// package formatter renders track lists as CSV, Markdown, plain text or JSON for CLI output
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/shared"
)

// Format names an output format.
type Format string

const (
	FormatJSON     Format = "json"
	FormatText     Format = "text"
	FormatMarkdown Format = "markdown"
	FormatCSV      Format = "csv"
)

// Formats lists every supported format, for flag help.
var Formats = []Format{FormatJSON, FormatText, FormatMarkdown, FormatCSV}

// ParseFormat accepts a format name, case-insensitively. "md" and "txt" are aliases.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "text", "txt", "":
		return FormatText, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	case "csv":
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, s)
}

// TrackList is a titled list of tracks, such as favorites, a playlist or a set of recommendations.
type TrackList struct {
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Tracks      []models.Track `json:"tracks"`
}

// FormatDuration renders seconds as m:ss, or h:mm:ss from an hour up.
func FormatDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h, m, s := seconds/3600, (seconds%3600)/60, seconds%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func seedOf(track models.Track) string {
	if track.SourceSeedID == nil {
		return ""
	}
	return track.SourceSeedID.String()
}

// ExportToCSV converts a TrackList to CSV format with columns: ID, Title, Artist, Album, Duration, URL, Seed
func ExportToCSV(list *TrackList) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"ID", "Title", "Artist", "Album", "Duration", "URL", "Seed"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, track := range list.Tracks {
		record := []string{
			track.ID.String(),
			track.Title,
			track.Artist,
			track.Album,
			strconv.Itoa(track.Duration),
			track.URL,
			seedOf(track),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a TrackList to a Markdown document with linked track titles
func ExportToMarkdown(list *TrackList) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", list.Title)

	if list.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", list.Description)
	}

	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(list.Tracks))

	buf.WriteString("## Tracks\n\n")
	for i, track := range list.Tracks {
		title := track.Title
		if track.URL != "" {
			title = fmt.Sprintf("[%s](%s)", track.Title, track.URL)
		}
		albumPart := ""
		if track.Album != "" && track.Album != models.Unknown {
			albumPart = fmt.Sprintf(" (%s)", track.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]", i+1, track.Artist, title, albumPart, FormatDuration(track.Duration))
		if seed := seedOf(track); seed != "" {
			fmt.Fprintf(&buf, " _via %s_", seed)
		}
		buf.WriteString("\n")
	}

	return buf.Bytes(), nil
}

// ExportToText converts a TrackList to plain text format
func ExportToText(list *TrackList) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "%s\n", list.Title)
	if list.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", list.Description)
	}
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(list.Tracks))

	for i, track := range list.Tracks {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, track.Artist, track.Title, FormatDuration(track.Duration))
		if track.URL != "" {
			fmt.Fprintf(&buf, "   %s\n", track.URL)
		}
	}

	return buf.Bytes(), nil
}

// ExportToJSON renders the list as indented JSON
func ExportToJSON(list *TrackList) ([]byte, error) {
	data, err := shared.MarshalJSON(list, true)
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// Render converts list to the given format.
func Render(list *TrackList, format Format) ([]byte, error) {
	switch format {
	case FormatJSON:
		return ExportToJSON(list)
	case FormatText:
		return ExportToText(list)
	case FormatMarkdown:
		return ExportToMarkdown(list)
	case FormatCSV:
		return ExportToCSV(list)
	}
	return nil, fmt.Errorf("%w: unknown format %q", shared.ErrInvalidArgument, format)
}

// Write renders list to w.
func Write(w io.Writer, list *TrackList, format Format) error {
	data, err := Render(list, format)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

// Extension returns the file extension used for format.
func Extension(format Format) string {
	switch format {
	case FormatMarkdown:
		return ".md"
	case FormatCSV:
		return ".csv"
	case FormatJSON:
		return ".json"
	default:
		return ".txt"
	}
}

// WriteFile renders list to a file.
//
// An empty path defaults to tracks{ext} in the working directory. Returns the path written.
func WriteFile(list *TrackList, format Format, path string) (string, error) {
	if path == "" {
		path = "tracks" + Extension(format)
	}

	data, err := Render(list, format)
	if err != nil {
		return "", fmt.Errorf("failed to render %s: %w", format, err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return path, nil
}
