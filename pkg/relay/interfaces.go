package relay

import (
	"context"
	"io"

	"igrelay/pkg/session"
)

// SeenStore is the part of the seen-items ledger the relay needs
type SeenStore interface {
	Has(ctx context.Context, storyID string) (bool, error)
	Record(ctx context.Context, storyID, userID string) error
}

// Sender transmits media files to the destination channel
type Sender interface {
	SendPhoto(ctx context.Context, path, caption string) error
	SendVideo(ctx context.Context, path, caption string) error
}

// Spool holds downloaded media until it has been transmitted
type Spool interface {
	Save(r io.Reader, storyID, ext string) (string, error)
	Remove(path string) error
}

// SessionManager owns the current Instagram client value
type SessionManager interface {
	Client() session.Client
	Reauthenticate(ctx context.Context) error
}
