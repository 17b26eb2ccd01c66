// Package repositories implements SQLite persistence for login sessions and recommendation history.
//
// Key Implementations:
//   - [SessionRepository] : TIDAL sessions with the OAuth2 token stored as JSON; [SessionRepository.Latest]
//     is what the backend authenticates with
//   - [RecommendationRunRepository] : append-only log of batch recommendations
//
// The backend keeps a single session: login clears the table before inserting.
package repositories
