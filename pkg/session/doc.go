// Package session owns the authenticated Instagram client.
//
// A Manager loads the persisted session at startup, logging in and saving a
// new one when none exists. When the platform rejects the session, the
// Manager discards the current client value and builds a new one through a
// full login rather than repairing the old client in place.
//
// Sessions persist to a JSON file (optionally sealed with AES-GCM) or to the
// system keychain.
package session
