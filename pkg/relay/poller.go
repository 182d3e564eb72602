package relay

import (
	"context"
	"fmt"

	errs "igrelay/pkg/errors"
	"igrelay/pkg/instagram"
	"igrelay/pkg/logger"
	"igrelay/pkg/session"
)

// Poller fetches the current stories of an account.
//
// Resolved user ids are cached for the life of the process.
type Poller struct {
	logger  logger.Logger
	userIDs map[string]string
}

// NewPoller creates a poller
func NewPoller(log logger.Logger) *Poller {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Poller{
		logger:  log.WithField("component", "poller"),
		userIDs: make(map[string]string),
	}
}

// FetchStories resolves account to a user id and lists its current stories
func (p *Poller) FetchStories(ctx context.Context, client session.Client, account string) ([]instagram.Story, error) {
	if client == nil {
		return nil, fmt.Errorf("fetch stories for %s: no instagram client", account)
	}
	if !instagram.IsValidUsername(account) {
		return nil, errs.New(errs.ErrorTypeNotFound, 0, "invalid account handle %q", account)
	}

	p.logger.WithField("account", account).Info("Fetching stories")

	userID, ok := p.userIDs[account]
	if !ok {
		id, err := client.UserIDByUsername(ctx, account)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", account, err)
		}
		userID = id
		p.userIDs[account] = userID
	}

	stories, err := client.UserStories(ctx, userID)
	if err != nil {
		if errs.TypeOf(err) == errs.ErrorTypeNotFound {
			delete(p.userIDs, account)
		}
		return nil, fmt.Errorf("stories of %s: %w", account, err)
	}

	p.logger.InfoWithFields("Found stories", map[string]interface{}{
		"account": account,
		"user_id": userID,
		"count":   len(stories),
	})

	return stories, nil
}
