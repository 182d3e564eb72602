// Package storage spools story media to local disk between download and
// transmission. Files are written through a temp file and renamed into
// place, so a spooled path always holds a complete payload.
package storage
