// Package services implements the clients the backend and the MCP tools use: [TidalService] for the TIDAL v1 API,
// [TidalAuth] for login, and [APIService] for the local backend.
//
// # Catalog
//
// [Catalog] is the slice of TIDAL the backend needs: favorites, single track lookup, track radio and playlists.
// [TidalService] implements it. Every request carries the account's countryCode and an OAuth2 bearer token.
//
// # Rate Limiting and Circuit Breaking
//
// All requests pass through one [rate.Limiter] and one gobreaker circuit breaker shared by every copy made
// with [TidalService.WithTokenSource]. Transport errors, 429 and 5xx count as breaker failures; an open
// breaker fails fast with [shared.ErrUpstreamUnavailable].
//
// # Authentication
//
// [TidalAuth] runs the OAuth2 device authorization grant:
//  1. POST {auth_url}/device_authorization for a device and user code
//  2. open the browser at the verification url
//  3. poll {auth_url}/token until the user approves or the login timeout passes
//  4. resolve the account via GET /sessions and GET /users/{id}
//  5. store the session through [SessionStore]
//
// Tokens refreshed later are written back to the store, so a session survives restarts.
//
// # Error Handling
//
// Services wrap the sentinels from the shared package:
//   - [shared.ErrAuthRequired] : no session, or TIDAL answered 401/403
//   - [shared.ErrUpstreamUnavailable] : transport failure, 429, 5xx or open breaker
//   - [shared.ErrAPIRequest] : any other non-2xx answer or an undecodable body
//   - [shared.ErrTrackNotFound], [shared.ErrPlaylistNotFound] : 404 on a track or playlist
//   - [shared.ErrTimeout] : login not approved in time
package services
