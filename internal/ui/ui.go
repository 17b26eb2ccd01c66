package ui

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/tidal-mcp/internal/models"
	"github.com/desertthunder/tidal-mcp/internal/services"
	"github.com/desertthunder/tidal-mcp/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	FavoritesView ViewState = iota
	RecommendationsView
)

// Options tunes the browser. Zero values take the defaults.
type Options struct {
	FavoritesLimit       int
	RecommendationsLimit int
	// OpenURL opens a track link. Defaults to [shared.OpenBrowser].
	OpenURL func(string) error
}

// Model represents the TUI application state.
type Model struct {
	ctx     context.Context
	view    ViewState
	catalog services.Catalog
	opts    Options
	width   int
	height  int
	loading bool
	ready   bool
	favList list.Model
	recList list.Model
	seed    *models.Track
	status  string
	err     error
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model over catalog.
func NewModel(ctx context.Context, catalog services.Catalog, opts Options) *Model {
	if opts.FavoritesLimit <= 0 {
		opts.FavoritesLimit = shared.MaxLimit
	}
	if opts.RecommendationsLimit <= 0 {
		opts.RecommendationsLimit = 20
	}
	if opts.OpenURL == nil {
		opts.OpenURL = shared.OpenBrowser
	}
	return &Model{
		ctx:     ctx,
		view:    FavoritesView,
		catalog: catalog,
		opts:    opts,
		loading: true,
		favList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		recList: list.New(nil, list.NewDefaultDelegate(), 0, 0),
		help:    help.New(),
		keys:    newKeyMap(),
	}
}

// Init initializes the TUI by fetching the user's favorites.
func (m *Model) Init() tea.Cmd {
	return m.fetchFavorites()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.favList.SetSize(m.listSize())
		m.recList.SetSize(m.listSize())
		return m, nil

	case tea.KeyMsg:
		switch m.view {
		case FavoritesView:
			return m.handleFavoritesKeys(msg)
		case RecommendationsView:
			return m.handleRecommendationsKeys(msg)
		}

	case Msg:
		return m.handleMsg(msg)
	}

	return m.updateLists(msg)
}

func (m *Model) handleMsg(msg Msg) (tea.Model, tea.Cmd) {
	switch msg.kind {
	case MsgFavoritesFetched:
		res := msg.data.(tracksResult)
		m.loading = false
		m.ready = true
		if res.err != nil {
			m.err = res.err
			return m, nil
		}
		m.favList = m.newList("Favorite Tracks", res.tracks)
		return m, nil

	case MsgRecommendationsFetched:
		res := msg.data.(tracksResult)
		m.loading = false
		if res.err != nil {
			m.status = fmt.Sprintf("No recommendations for %q: %v", res.seed.Title, res.err)
			return m, nil
		}
		m.seed = res.seed
		m.recList = m.newList(fmt.Sprintf("Similar to '%s'", res.seed.Title), res.tracks)
		m.view = RecommendationsView
		m.status = ""
		return m, nil

	case MsgOpened:
		if err, _ := msg.data.(error); err != nil {
			m.status = fmt.Sprintf("Could not open browser: %v", err)
		}
		return m, nil
	}
	return m, nil
}

func (m *Model) newList(title string, tracks []models.Track) list.Model {
	w, h := m.listSize()
	l := list.New(trackItems(tracks), list.NewDefaultDelegate(), w, h)
	l.Title = title
	return l
}

func (m *Model) listSize() (int, int) {
	return max(m.width-4, 0), max(m.height-8, 0)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	if m.err != nil {
		return styles.err.Render(fmt.Sprintf("Error: %v\n\nPress q to quit", m.err))
	}
	if !m.ready {
		return styles.help.Render("Loading favorites...")
	}

	switch m.view {
	case FavoritesView:
		return m.renderFavorites()
	case RecommendationsView:
		return m.renderRecommendations()
	default:
		return ""
	}
}

func (m *Model) filtering(l list.Model) bool {
	return l.FilterState() == list.Filtering
}

func (m *Model) handleFavoritesKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.err != nil {
		if key.Matches(msg, m.keys.quit) {
			return m, tea.Quit
		}
		return m, nil
	}
	if !m.filtering(m.favList) {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.enter):
			if item, ok := m.favList.SelectedItem().(trackItem); ok && !m.loading {
				m.loading = true
				m.status = fmt.Sprintf("Finding tracks similar to %q...", item.track.Title)
				return m, m.fetchRecommendations(item.track)
			}
			return m, nil
		case key.Matches(msg, m.keys.open):
			if item, ok := m.favList.SelectedItem().(trackItem); ok {
				return m, m.openTrack(item.track)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.favList, cmd = m.favList.Update(msg)
	return m, cmd
}

func (m *Model) handleRecommendationsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if !m.filtering(m.recList) {
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.back):
			m.view = FavoritesView
			m.status = ""
			return m, nil
		case key.Matches(msg, m.keys.open):
			if item, ok := m.recList.SelectedItem().(trackItem); ok {
				return m, m.openTrack(item.track)
			}
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.recList, cmd = m.recList.Update(msg)
	return m, cmd
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case FavoritesView:
		m.favList, cmd = m.favList.Update(msg)
	case RecommendationsView:
		m.recList, cmd = m.recList.Update(msg)
	}
	return m, cmd
}

func (m *Model) fetchFavorites() tea.Cmd {
	return func() tea.Msg {
		raw, err := m.catalog.FavoriteTracks(m.ctx, m.opts.FavoritesLimit)
		if err != nil {
			return favoritesFetchedMsg(nil, err)
		}
		return favoritesFetchedMsg(models.FormatTracks(raw, nil), nil)
	}
}

func (m *Model) fetchRecommendations(seed models.Track) tea.Cmd {
	return func() tea.Msg {
		raw, err := m.catalog.SimilarTracks(m.ctx, seed.ID, m.opts.RecommendationsLimit)
		if err != nil {
			return recommendationsFetchedMsg(seed, nil, err)
		}
		return recommendationsFetchedMsg(seed, models.FormatTracks(raw, &seed.ID), nil)
	}
}

func (m *Model) openTrack(track models.Track) tea.Cmd {
	return func() tea.Msg {
		return openedMsg(m.opts.OpenURL(track.URL))
	}
}

func (m *Model) statusLine() string {
	if m.status == "" {
		return ""
	}
	return "\n" + styles.warn.Render(m.status)
}

func (m *Model) renderFavorites() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.open, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s%s\n\n%s", m.favList.View(), m.statusLine(), helpView)
}

func (m *Model) renderRecommendations() string {
	helpKeys := []key.Binding{m.keys.open, m.keys.back, m.keys.quit}
	helpView := m.help.ShortHelpView(helpKeys)
	return fmt.Sprintf("%s%s\n\n%s", m.recList.View(), m.statusLine(), helpView)
}

// Run starts the browser and blocks until the user quits.
func Run(ctx context.Context, catalog services.Catalog, opts Options, teaOpts ...tea.ProgramOption) error {
	teaOpts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, teaOpts...)
	p := tea.NewProgram(NewModel(ctx, catalog, opts), teaOpts...)
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}
	return nil
}
