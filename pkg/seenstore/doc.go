// Package seenstore records which stories have already been forwarded.
//
// The default backend is a SQLite file with a single stories table. A redis
// backend is available for deployments without a persistent volume, and an
// in-memory store backs the tests.
package seenstore
