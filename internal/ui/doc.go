// Package ui implements the terminal interfaces of the CLI using bubbletea's Elm architecture.
//
// Two programs live here:
//  1. [LoginModel] : a spinner shown while the device login waits for approval, with the
//     verification link and user code once TIDAL hands them out
//  2. [Model] : a track browser with two views
//     - [FavoritesView] : the user's favorite tracks
//     - [RecommendationsView] : the track radio of the selected favorite
//
// The browser's [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Lookups run as [tea.Cmd]s so the interface never blocks on the network.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, o, q) with contextual help displayed via charmbracelet/bubbles/help.
//
// The [Palette] styles are also used for the plain CLI status output.
package ui
