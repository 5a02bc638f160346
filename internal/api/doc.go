// Package api implements the HTTP job surface and WebSocket server for the
// playout engine.
//
// This package provides:
//   - REST endpoints that submit playout jobs (activate, take, set next, ...)
//   - Read endpoints for playlists, their on-air status and lookahead
//   - A WebSocket hub that pushes timeline updates to operator UIs
//   - JWT bearer authentication with ticket-based WebSocket auth
//
// # Architecture
//
// Handlers never touch documents directly. Every request is turned into a
// call on the job runner, which serialises it against other jobs for the
// same playlist. User errors come back with a stable code:
//
//	{"error": {"code": "TakeFromIncorrectPart", "message": "..."}}
//
// # Security
//
// When api.auth_enabled is set, every /api/v1 route except /health requires
// an HS256 token signed with security.jwt.secret. WebSocket connections use
// single-use tickets so the token never appears in a URL.
package api
