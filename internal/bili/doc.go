// Package bili talks to the Bilibili web API: QR device login, credential
// persistence, and the typed JSON endpoints the sync and download flows
// consume.
//
// Client wraps every authenticated call with session-invalid interception:
// when the response envelope carries the login-expired code the client
// re-authenticates through the SessionManager, persists the fresh
// credential, and retries the original call exactly once. All other
// non-zero envelope codes surface as *APIError with the server message.
// Network failures are never retried here; callers own transient retry
// policy.
//
// Credentials live in a TOML file. A missing or unreadable file means
// "not logged in"; a corrupt file is deleted rather than left in place.
package bili
