// Package instagram is a small client for the Instagram web API.
//
// It covers what the relay needs: a full username/password login that yields
// a serializable Session, resolving a handle to a user id, listing a user's
// current stories, and downloading story media. Every failure is returned as
// a typed igrelay/pkg/errors.Error so callers can tell an expired session
// (ErrorTypeAuth) from a transient fetch failure.
//
//	client := instagram.NewClient(30*time.Second, log, instagram.WithLimiter(limiter))
//	session, err := client.Login(ctx, username, password)
//	userID, err := client.UserIDByUsername(ctx, "alice")
//	stories, err := client.UserStories(ctx, userID)
package instagram
