// Package models defines the domain entities shared by the backend, the MCP tools and the CLI.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects: values that cross the HTTP and tool boundaries
//   - [Track] : formatted track with an optional source seed, the unit the recommendation engine returns
//   - [TidalTrack] : the upstream TIDAL track shape, converted with [FormatTrack]
//   - [Playlist] : playlist metadata
//   - [User] : the identity behind an authenticated session
//
// 2. Persistent Entities: database-backed models
//   - [Session] : OAuth token and identity produced by the device login flow
//   - [RecommendationRun] : bookkeeping for one batch recommendation
//
// Persistent entities implement [Model]; the [Repository] interface defines standard CRUD operations for database access.
package models
