package relay

import (
	"context"
	"fmt"
	"time"

	errs "igrelay/pkg/errors"
	"igrelay/pkg/logger"
)

// State is a state of the supervising loop
type State int

const (
	StatePolling State = iota
	StateSleeping
	StateReauthenticating
	StateBackoffSleeping
)

func (s State) String() string {
	switch s {
	case StatePolling:
		return "POLLING"
	case StateSleeping:
		return "SLEEPING"
	case StateReauthenticating:
		return "REAUTHENTICATING"
	case StateBackoffSleeping:
		return "BACKOFF_SLEEPING"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// SupervisorConfig holds the loop timings and the account list
type SupervisorConfig struct {
	Accounts     []string
	PollInterval time.Duration
	BackoffDelay time.Duration
	ReauthPause  time.Duration
}

// Supervisor runs poll cycles forever, sleeping between them,
// re-authenticating on session expiry and backing off on anything else
type Supervisor struct {
	cfg      SupervisorConfig
	sessions SessionManager
	poller   *Poller
	relayer  *Relayer
	logger   logger.Logger

	state           State
	resumeAt        int
	reauthenticated bool
	sleep           func(ctx context.Context, d time.Duration) error

	// OnTransition, when set, observes every state change
	OnTransition func(from, to State)
}

// NewSupervisor creates a supervisor in the POLLING state
func NewSupervisor(cfg SupervisorConfig, sessions SessionManager, poller *Poller, relayer *Relayer, log logger.Logger) *Supervisor {
	if log == nil {
		log = logger.GetLogger()
	}
	accounts := make([]string, len(cfg.Accounts))
	copy(accounts, cfg.Accounts)
	cfg.Accounts = accounts

	return &Supervisor{
		cfg:      cfg,
		sessions: sessions,
		poller:   poller,
		relayer:  relayer,
		logger:   log.WithField("component", "supervisor"),
		state:    StatePolling,
		sleep:    sleepContext,
	}
}

// State returns the current state
func (s *Supervisor) State() State {
	return s.state
}

// Run drives the state machine until ctx is cancelled or re-authentication
// fails. It returns ctx.Err() on cancellation.
func (s *Supervisor) Run(ctx context.Context) error {
	logger.LogComponentStart(s.logger, "supervisor", map[string]interface{}{
		"accounts":      s.cfg.Accounts,
		"poll_interval": s.cfg.PollInterval,
		"backoff_delay": s.cfg.BackoffDelay,
	})

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		switch s.state {
		case StatePolling:
			outcome, err := s.PollCycle(ctx)
			switch outcome {
			case errs.OutcomeSuccess:
				s.transition(StateSleeping, "cycle complete")
			case errs.OutcomeCredentialExpired:
				s.logger.WithError(err).Warn("Session expired, re-authenticating")
				s.transition(StateReauthenticating, "credential expired")
			default:
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.WithError(err).Error("Critical error in poll cycle")
				s.transition(StateBackoffSleeping, "unhandled error")
			}

		case StateSleeping:
			if err := s.sleep(ctx, s.cfg.PollInterval); err != nil {
				return err
			}
			s.transition(StatePolling, "interval elapsed")

		case StateReauthenticating:
			if err := s.sessions.Reauthenticate(ctx); err != nil {
				return fmt.Errorf("re-authentication failed: %w", err)
			}
			s.reauthenticated = true
			if err := s.sleep(ctx, s.cfg.ReauthPause); err != nil {
				return err
			}
			s.transition(StatePolling, "re-authenticated")

		case StateBackoffSleeping:
			if err := s.sleep(ctx, s.cfg.BackoffDelay); err != nil {
				return err
			}
			s.transition(StatePolling, "backoff elapsed")
		}
	}
}

// PollCycle polls every account once, in order, starting where an expired
// session interrupted the previous cycle.
//
// Per-account fetch failures and per-story relay failures are logged and
// skipped. A credential expiry stops the cycle with OutcomeCredentialExpired
// and remembers the account so the next cycle resumes there, unless that
// account is rejected again by the session just obtained, in which case it
// is skipped like any other failing account. Anything else stops the cycle
// with OutcomeFatal.
func (s *Supervisor) PollCycle(ctx context.Context) (errs.Outcome, error) {
	start := s.resumeAt
	freshSession := s.reauthenticated
	s.reauthenticated = false

	for i := start; i < len(s.cfg.Accounts); i++ {
		account := s.cfg.Accounts[i]
		client := s.sessions.Client()
		log := s.logger.WithField("account", account)
		rejectedAgain := freshSession && i == start

		stories, err := s.poller.FetchStories(ctx, client, account)
		if err != nil {
			if ctx.Err() != nil {
				s.resumeAt = 0
				return errs.OutcomeFatal, err
			}
			if errs.Classify(err) == errs.OutcomeCredentialExpired {
				if !rejectedAgain {
					s.resumeAt = i
					return errs.OutcomeCredentialExpired, err
				}
				log.WithError(err).Warn("Account rejected right after re-authentication, skipping it")
				continue
			}
			log.WithError(err).Error("Error fetching stories")
			continue
		}

	storyLoop:
		for _, story := range stories {
			result := s.relayer.Relay(ctx, client, story, account)
			switch result.Outcome {
			case errs.OutcomeSuccess, errs.OutcomeRecoverable:
				continue
			case errs.OutcomeCredentialExpired:
				if rejectedAgain {
					log.WithError(result.Err).Warn("Account rejected right after re-authentication, skipping it")
					break storyLoop
				}
				s.resumeAt = i
				return result.Outcome, result.Err
			default:
				s.resumeAt = 0
				return result.Outcome, result.Err
			}
		}
	}

	s.resumeAt = 0
	return errs.OutcomeSuccess, nil
}

func (s *Supervisor) transition(to State, reason string) {
	from := s.state
	s.state = to
	logger.LogStateTransition(s.logger, from.String(), to.String(), reason)
	if s.OnTransition != nil {
		s.OnTransition(from, to)
	}
}

// sleepContext sleeps for d or until ctx is done
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
