package relay

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"igrelay/pkg/config"
	errs "igrelay/pkg/errors"
	"igrelay/pkg/instagram"
	"igrelay/pkg/logger"
	"igrelay/pkg/session"
)

// Result is the tagged outcome of relaying one story
type Result struct {
	Outcome   errs.Outcome
	Err       error
	Delivered bool
}

func success(delivered bool) Result {
	return Result{Outcome: errs.OutcomeSuccess, Delivered: delivered}
}

func failure(outcome errs.Outcome, err error) Result {
	return Result{Outcome: outcome, Err: err}
}

// Options configures a Relayer
type Options struct {
	CaptionTemplate string
	KeepDownloads   bool
}

// Relayer forwards unseen stories and records them once delivered
type Relayer struct {
	store  SeenStore
	sender Sender
	spool  Spool
	opts   Options
	logger logger.Logger
}

// NewRelayer creates a relayer
func NewRelayer(store SeenStore, sender Sender, spool Spool, opts Options, log logger.Logger) *Relayer {
	if log == nil {
		log = logger.GetLogger()
	}
	if opts.CaptionTemplate == "" || !strings.Contains(opts.CaptionTemplate, "%s") {
		opts.CaptionTemplate = config.DefaultCaption
	}
	return &Relayer{
		store:  store,
		sender: sender,
		spool:  spool,
		opts:   opts,
		logger: log.WithField("component", "relay"),
	}
}

// Caption returns the caption identifying the source account
func (r *Relayer) Caption(account string) string {
	return fmt.Sprintf(r.opts.CaptionTemplate, account)
}

// Relay forwards story unless it was already delivered.
//
// The story is recorded only after the channel confirmed the upload, so a
// failed download or transmission leaves it unseen for the next cycle.
func (r *Relayer) Relay(ctx context.Context, client session.Client, story instagram.Story, account string) Result {
	log := r.logger.WithFields(map[string]interface{}{
		"account":  account,
		"story_id": story.ID,
	})

	seen, err := r.store.Has(ctx, story.ID)
	if err != nil {
		return failure(errs.OutcomeFatal, errs.Wrap(errs.ErrorTypeStorage, err, "check seen stories"))
	}
	if seen {
		log.Debug("Story already relayed")
		return success(false)
	}

	if story.Kind != instagram.MediaPhoto && story.Kind != instagram.MediaVideo {
		log.WithField("media_kind", string(story.Kind)).Warn("Unsupported media kind, skipping story")
		return success(false)
	}

	log.WithField("media_kind", string(story.Kind)).Info("Processing story")

	data, err := client.DownloadMedia(ctx, story.URL)
	if err != nil {
		return r.fetchFailure(ctx, account, story, fmt.Errorf("download story %s: %w", story.ID, err))
	}

	path, err := r.spool.Save(bytes.NewReader(data), story.ID, story.Extension())
	if err != nil {
		return failure(errs.OutcomeFatal, errs.Wrap(errs.ErrorTypeStorage, err, "spool story media"))
	}
	if !r.opts.KeepDownloads {
		defer func() {
			if err := r.spool.Remove(path); err != nil {
				log.WithError(err).Warn("Failed to remove spooled media")
			}
		}()
	}

	caption := r.Caption(account)
	if story.Kind == instagram.MediaVideo {
		err = r.sender.SendVideo(ctx, path, caption)
	} else {
		err = r.sender.SendPhoto(ctx, path, caption)
	}
	if err != nil {
		return r.fetchFailure(ctx, account, story, fmt.Errorf("transmit story %s: %w", story.ID, err))
	}

	if err := r.store.Record(ctx, story.ID, story.UserID); err != nil {
		return failure(errs.OutcomeFatal, errs.Wrap(errs.ErrorTypeStorage, err, "record delivered story"))
	}

	logger.LogRelay(r.logger, account, story.ID, string(story.Kind), true, nil)
	return success(true)
}

// fetchFailure leaves the story unseen. Only an expired session or a
// cancelled context escalates beyond this story.
func (r *Relayer) fetchFailure(ctx context.Context, account string, story instagram.Story, err error) Result {
	if ctx.Err() != nil {
		return failure(errs.OutcomeFatal, err)
	}
	if errs.IsCredentialExpired(err) {
		return failure(errs.OutcomeCredentialExpired, err)
	}

	logger.LogRelay(r.logger, account, story.ID, string(story.Kind), false, err)
	return failure(errs.OutcomeRecoverable, err)
}
