package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	errs "igrelay/pkg/errors"
	"igrelay/pkg/instagram"
	"igrelay/pkg/logger"
	"igrelay/pkg/seenstore"
	"igrelay/pkg/storage"
)

type transition struct{ from, to State }

type supervisorFixture struct {
	store       *seenstore.MemoryStore
	sender      *fakeSender
	sessions    *fakeSessions
	supervisor  *Supervisor
	log         *logger.TestLogger
	sleeps      []time.Duration
	transitions []transition
}

// newSupervisorFixture builds a supervisor whose sleeps are recorded and
// which stops after maxSleeps sleeps
func newSupervisorFixture(t *testing.T, accounts []string, maxSleeps int, clients ...*fakeClient) (*supervisorFixture, context.Context) {
	spool, err := storage.NewManager(filepath.Join(t.TempDir(), "downloads"))
	require.NoError(t, err)

	f := &supervisorFixture{
		store:    seenstore.NewMemoryStore(),
		sender:   &fakeSender{},
		sessions: &fakeSessions{clients: clients},
		log:      logger.NewTestLogger(),
	}

	relayer := NewRelayer(f.store, f.sender, spool, Options{}, f.log)
	f.supervisor = NewSupervisor(SupervisorConfig{
		Accounts:     accounts,
		PollInterval: 30 * time.Minute,
		BackoffDelay: 60 * time.Second,
		ReauthPause:  5 * time.Second,
	}, f.sessions, NewPoller(f.log), relayer, f.log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	f.supervisor.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		if len(f.sleeps) >= maxSleeps {
			cancel()
		}
		return ctx.Err()
	}
	f.supervisor.OnTransition = func(from, to State) {
		f.transitions = append(f.transitions, transition{from, to})
	}

	return f, ctx
}

func TestScenarioUnseenPhotoIsRelayed(t *testing.T) {
	client := newFakeClient().withAccount("alice", "42", photo("S1", "42"))
	f, ctx := newSupervisorFixture(t, []string{"alice"}, 1, client)

	err := f.supervisor.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	require.Len(t, f.sender.sent, 1)
	assert.Equal(t, "photo", f.sender.sent[0].kind)
	assert.Contains(t, f.sender.sent[0].caption, "alice")

	seen, err := f.store.Has(context.Background(), "S1")
	require.NoError(t, err)
	assert.True(t, seen)

	assert.Equal(t, []time.Duration{30 * time.Minute}, f.sleeps)
	assert.Equal(t, []transition{{StatePolling, StateSleeping}}, f.transitions)
}

func TestScenarioAlreadySeenStoryNotSent(t *testing.T) {
	client := newFakeClient().withAccount("alice", "42", photo("S1", "42"))
	f, ctx := newSupervisorFixture(t, []string{"alice"}, 1, client)
	require.NoError(t, f.store.Record(context.Background(), "S1", "42"))

	_ = f.supervisor.Run(ctx)

	assert.Zero(t, f.sender.attempts)
}

func TestScenarioUnknownKindNotSentOrRecorded(t *testing.T) {
	story := photo("C1", "42")
	story.Kind = instagram.MediaUnknown
	client := newFakeClient().withAccount("alice", "42", story)
	f, ctx := newSupervisorFixture(t, []string{"alice"}, 1, client)

	err := f.supervisor.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Zero(t, f.sender.attempts)
	assert.Zero(t, f.store.Len())
}

func TestStoriesAreRelayedOnceAcrossCycles(t *testing.T) {
	client := newFakeClient().withAccount("alice", "42", photo("S1", "42"), video("S2", "42"))
	f, ctx := newSupervisorFixture(t, []string{"alice"}, 3, client)

	_ = f.supervisor.Run(ctx)

	assert.Len(t, f.sender.sent, 2)
	assert.Len(t, client.storyCalls, 3)
}

func TestFailedAccountDoesNotStopCycle(t *testing.T) {
	client := newFakeClient().
		withAccount("alice", "41").
		withAccount("bob", "42", photo("S2", "42"))
	client.resolveErr["alice"] = errs.New(errs.ErrorTypeNotFound, 404, "user alice not found")
	f, ctx := newSupervisorFixture(t, []string{"alice", "bob"}, 1, client)

	_ = f.supervisor.Run(ctx)

	assert.Equal(t, 1, client.resolveCalls["bob"])
	require.Len(t, f.sender.sent, 1)
	assert.Contains(t, f.sender.sent[0].caption, "bob")
	assert.True(t, f.log.HasMessage("Error fetching stories"))
	assert.Equal(t, []transition{{StatePolling, StateSleeping}}, f.transitions)
}

func TestFailedTransmissionRetriedNextCycle(t *testing.T) {
	client := newFakeClient().withAccount("alice", "42", photo("S1", "42"))
	f, ctx := newSupervisorFixture(t, []string{"alice"}, 2, client)
	f.sender.err = errs.New(errs.ErrorTypeTransmission, 502, "bad gateway")

	f.supervisor.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		f.sender.err = nil
		if len(f.sleeps) >= 2 {
			return context.Canceled
		}
		return nil
	}

	_ = f.supervisor.Run(ctx)

	assert.Equal(t, 2, f.sender.attempts)
	assert.Len(t, f.sender.sent, 1)
	assert.Equal(t, 1, f.store.Len())
}

func TestCredentialExpiryReauthenticatesOnceAndResumes(t *testing.T) {
	first := newFakeClient().
		withAccount("alice", "41", photo("S1", "41")).
		withAccount("bob", "42")
	first.storiesErr["42"] = errs.New(errs.ErrorTypeAuth, 401, "login_required")

	second := newFakeClient().
		withAccount("alice", "41", photo("S1", "41")).
		withAccount("bob", "42", photo("S2", "42"))

	f, ctx := newSupervisorFixture(t, []string{"alice", "bob"}, 2, first, second)

	err := f.supervisor.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, f.sessions.reauths)
	assert.Equal(t, []time.Duration{5 * time.Second, 30 * time.Minute}, f.sleeps)
	assert.Equal(t, []transition{
		{StatePolling, StateReauthenticating},
		{StateReauthenticating, StatePolling},
		{StatePolling, StateSleeping},
	}, f.transitions)

	// polling resumed at bob with the new client
	assert.Equal(t, []string{"42"}, second.storyCalls)
	require.Len(t, f.sender.sent, 2)
	assert.Contains(t, f.sender.sent[0].caption, "alice")
	assert.Contains(t, f.sender.sent[1].caption, "bob")
}

func TestCredentialExpiryDuringDownload(t *testing.T) {
	first := newFakeClient().withAccount("alice", "41", photo("S1", "41"))
	first.downloadErr = errs.New(errs.ErrorTypeAuth, 403, "login_required")
	second := newFakeClient().withAccount("alice", "41", photo("S1", "41"))

	f, ctx := newSupervisorFixture(t, []string{"alice"}, 2, first, second)

	_ = f.supervisor.Run(ctx)

	assert.Equal(t, 1, f.sessions.reauths)
	assert.Len(t, f.sender.sent, 1)
	assert.Equal(t, 1, second.downloads)
}

func TestFailedReauthenticationEndsRun(t *testing.T) {
	client := newFakeClient().withAccount("alice", "41")
	client.storiesErr["41"] = errs.New(errs.ErrorTypeAuth, 401, "login_required")
	f, ctx := newSupervisorFixture(t, []string{"alice"}, 10, client)
	f.sessions.reauthErr = errs.New(errs.ErrorTypeChallenge, 400, "checkpoint_required")

	err := f.supervisor.Run(ctx)

	require.Error(t, err)
	assert.NotErrorIs(t, err, context.Canceled)
	assert.Contains(t, err.Error(), "re-authentication failed")
	assert.Equal(t, 1, f.sessions.reauths)
	assert.Empty(t, f.sleeps)
}

func TestUnhandledErrorBacksOff(t *testing.T) {
	client := newFakeClient().withAccount("alice", "41", photo("S1", "41"))
	f, ctx := newSupervisorFixture(t, []string{"alice"}, 2, client)
	f.store.HasError = errors.New("database is locked")

	f.supervisor.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		f.store.HasError = nil
		if len(f.sleeps) >= 2 {
			return context.Canceled
		}
		return nil
	}

	_ = f.supervisor.Run(ctx)

	assert.Equal(t, []time.Duration{60 * time.Second, 30 * time.Minute}, f.sleeps)
	assert.Equal(t, []transition{
		{StatePolling, StateBackoffSleeping},
		{StateBackoffSleeping, StatePolling},
		{StatePolling, StateSleeping},
	}, f.transitions)
	assert.Len(t, f.sender.sent, 1)
	assert.True(t, f.log.HasMessage("Critical error in poll cycle"))
}

func TestRunStopsOnCanceledContext(t *testing.T) {
	f, _ := newSupervisorFixture(t, []string{"alice"}, 1, newFakeClient())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, f.supervisor.Run(ctx), context.Canceled)
	assert.Empty(t, f.transitions)
}

func TestSleepContext(t *testing.T) {
	assert.NoError(t, sleepContext(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, sleepContext(ctx, time.Hour), context.Canceled)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "POLLING", StatePolling.String())
	assert.Equal(t, "SLEEPING", StateSleeping.String())
	assert.Equal(t, "REAUTHENTICATING", StateReauthenticating.String())
	assert.Equal(t, "BACKOFF_SLEEPING", StateBackoffSleeping.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestUntypedFetchErrorDoesNotStopCycle(t *testing.T) {
	client := newFakeClient().
		withAccount("alice", "41").
		withAccount("bob", "42", photo("S2", "42"))
	client.resolveErr["alice"] = errors.New("connection reset by peer")
	f, ctx := newSupervisorFixture(t, []string{"alice", "bob"}, 1, client)

	_ = f.supervisor.Run(ctx)

	assert.Equal(t, 1, client.resolveCalls["bob"])
	assert.Len(t, f.sender.sent, 1)
	assert.Equal(t, []transition{{StatePolling, StateSleeping}}, f.transitions)
}

func TestInstagramFailuresOnFirstAccountDoNotStopCycle(t *testing.T) {
	tests := []struct {
		name    string
		respond func(w http.ResponseWriter, r *http.Request)
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			fmt.Fprint(w, `{"message": "Invalid request", "status": "fail"}`)
		}},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		}},
		{"timeout", func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-time.After(time.Second):
			case <-r.Context().Done():
			}
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var bobPolled atomic.Bool
			mux := http.NewServeMux()
			mux.HandleFunc(instagram.ProfileEndpoint, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Query().Get("username") == "alice" {
					tt.respond(w, r)
					return
				}
				bobPolled.Store(true)
				fmt.Fprint(w, `{"data": {"user": {"id": "42", "username": "bob"}}, "status": "ok"}`)
			})
			mux.HandleFunc(instagram.ReelsMediaEndpoint, func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `{"reels": {}, "status": "ok"}`)
			})
			server := httptest.NewServer(mux)
			defer server.Close()

			log := logger.NewTestLogger()
			client := instagram.NewClient(200*time.Millisecond, log, instagram.WithBaseURL(server.URL))
			sessions := &staticSessions{client: client}
			supervisor := NewSupervisor(SupervisorConfig{Accounts: []string{"alice", "bob"}},
				sessions, NewPoller(log), NewRelayer(seenstore.NewMemoryStore(), &fakeSender{}, nil, Options{}, log), log)

			outcome, err := supervisor.PollCycle(context.Background())

			assert.Equal(t, errs.OutcomeSuccess, outcome)
			assert.NoError(t, err)
			assert.True(t, bobPolled.Load())
			assert.Zero(t, sessions.reauths)
			assert.True(t, log.HasMessage("Error fetching stories"))
		})
	}
}

func TestAccountRejectedAgainAfterReauthIsSkipped(t *testing.T) {
	expired := errs.New(errs.ErrorTypeAuth, 401, "login_required")

	first := newFakeClient().
		withAccount("alice", "41", photo("S1", "41")).
		withAccount("bob", "42").
		withAccount("carol", "43")
	first.storiesErr["42"] = expired

	second := newFakeClient().
		withAccount("alice", "41", photo("S1", "41")).
		withAccount("bob", "42").
		withAccount("carol", "43", photo("S3", "43"))
	second.storiesErr["42"] = expired

	f, ctx := newSupervisorFixture(t, []string{"alice", "bob", "carol"}, 2, first, second)

	err := f.supervisor.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 1, f.sessions.reauths)
	assert.Equal(t, []transition{
		{StatePolling, StateReauthenticating},
		{StateReauthenticating, StatePolling},
		{StatePolling, StateSleeping},
	}, f.transitions)
	assert.Equal(t, []string{"42", "43"}, second.storyCalls)
	assert.Len(t, f.sender.sent, 2)
	assert.True(t, f.log.HasMessage("Account rejected right after re-authentication"))
}

func TestDownloadRejectedAgainAfterReauthIsSkipped(t *testing.T) {
	expired := errs.New(errs.ErrorTypeAuth, 401, "login_required")

	first := newFakeClient().withAccount("alice", "41", photo("S1", "41"))
	first.downloadErr = expired
	second := newFakeClient().withAccount("alice", "41", photo("S1", "41"))
	second.downloadErr = expired

	f, ctx := newSupervisorFixture(t, []string{"alice"}, 2, first, second)

	_ = f.supervisor.Run(ctx)

	assert.Equal(t, 1, f.sessions.reauths)
	assert.Equal(t, []time.Duration{5 * time.Second, 30 * time.Minute}, f.sleeps)
	assert.Zero(t, f.store.Len())
}

func TestSecondExpiryInLaterCycleReauthenticatesAgain(t *testing.T) {
	expired := errs.New(errs.ErrorTypeAuth, 401, "login_required")

	first := newFakeClient().withAccount("alice", "41")
	first.storiesErr["41"] = expired
	second := newFakeClient().withAccount("alice", "41")
	third := newFakeClient().withAccount("alice", "41")

	f, ctx := newSupervisorFixture(t, []string{"alice"}, 4, first, second, third)
	f.supervisor.sleep = func(ctx context.Context, d time.Duration) error {
		f.sleeps = append(f.sleeps, d)
		if len(f.sleeps) == 2 {
			second.storiesErr["41"] = expired
		}
		if len(f.sleeps) >= 4 {
			return context.Canceled
		}
		return nil
	}

	_ = f.supervisor.Run(ctx)

	assert.Equal(t, 2, f.sessions.reauths)
	assert.Len(t, third.storyCalls, 1)
}
