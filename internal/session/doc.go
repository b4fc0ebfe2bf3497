// Package session defines the boundary to the single messaging session.
//
// The real session lives in an external browser-automation process; this
// package only specifies its contract (connection state, scan code, group
// listing, sends) and ships a demo driver that simulates the
// scan -> ready lifecycle for development.
//
// The session has exactly one connected/disconnected state and no per-message
// queue. Callers must re-list groups before every use: group names are not
// stable across reconnects.
package session
