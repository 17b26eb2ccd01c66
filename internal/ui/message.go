package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tidal-mcp/internal/models"
)

// MsgKind enumerates all message types in the browser.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgFavoritesFetched MsgKind = iota
	MsgRecommendationsFetched
	MsgOpened
)

type tracksResult struct {
	seed   *models.Track
	tracks []models.Track
	err    error
}

// favoritesFetchedMsg is the constructor for [MsgFavoritesFetched]
func favoritesFetchedMsg(tracks []models.Track, err error) Msg {
	return Msg{kind: MsgFavoritesFetched, data: tracksResult{tracks: tracks, err: err}}
}

// recommendationsFetchedMsg is the constructor for [MsgRecommendationsFetched]
func recommendationsFetchedMsg(seed models.Track, tracks []models.Track, err error) Msg {
	return Msg{kind: MsgRecommendationsFetched, data: tracksResult{seed: &seed, tracks: tracks, err: err}}
}

// openedMsg is the constructor for [MsgOpened]
func openedMsg(err error) Msg {
	return Msg{kind: MsgOpened, data: err}
}
