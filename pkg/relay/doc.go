// Package relay implements the story relay loop.
//
// A Poller lists each account's current stories, a Relayer forwards the
// unseen ones and records them after delivery, and a Supervisor drives both
// through an explicit state machine:
//
//	POLLING          -> SLEEPING          cycle complete
//	SLEEPING         -> POLLING           interval elapsed
//	POLLING          -> REAUTHENTICATING  session expired
//	REAUTHENTICATING -> POLLING           new session, short pause
//	POLLING          -> BACKOFF_SLEEPING  any other failure
//	BACKOFF_SLEEPING -> POLLING           backoff elapsed
//
// Every layer reports an errors.Outcome instead of panicking, so the
// Supervisor decides transitions from tagged results alone.
package relay
