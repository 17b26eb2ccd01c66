// Package server provides the HTTP backend the MCP tools talk to.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation registers "METHOD /path" patterns on [http.ServeMux], so path wildcards
// are read with [http.Request.PathValue] and wrong methods get a 405.
//
// # Middleware
//
// Every route runs through [RequestID], [Logging], [Recover] and [Metrics]. Catalog routes are additionally
// wrapped in [RequireSession], which answers 401 {"error": "Not authenticated"} when no usable TIDAL
// session is stored and otherwise puts the session and an authenticated catalog in the request context.
//
// # Routes
//
//	GET    /health
//	GET    /metrics
//	GET    /api/auth/login
//	GET    /api/auth/status
//	POST   /api/auth/logout
//	GET    /api/tracks
//	GET    /api/tracks/{id}
//	GET    /api/recommendations/track/{id}
//	POST   /api/recommendations/batch
//	GET    /api/recommendations/history
//	GET    /api/playlists
//	POST   /api/playlists
//	GET    /api/playlists/{id}/tracks
//	DELETE /api/playlists/{id}
//
// Errors are mapped onto status codes in one place (statusFor) and returned as {"error": message}.
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes to encapsulate route definitions within the implementation.
package server
