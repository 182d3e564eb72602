package relay

import (
	"context"
	"fmt"
	"os"
	"sync"

	"igrelay/pkg/instagram"
	"igrelay/pkg/session"
)

// fakeClient is a scripted Instagram client
type fakeClient struct {
	mu           sync.Mutex
	ids          map[string]string
	stories      map[string][]instagram.Story
	resolveErr   map[string]error
	storiesErr   map[string]error
	media        map[string][]byte
	downloadErr  error
	resolveCalls map[string]int
	storyCalls   []string
	downloads    int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		ids:          make(map[string]string),
		stories:      make(map[string][]instagram.Story),
		resolveErr:   make(map[string]error),
		storiesErr:   make(map[string]error),
		media:        make(map[string][]byte),
		resolveCalls: make(map[string]int),
	}
}

func (f *fakeClient) withAccount(account, userID string, stories ...instagram.Story) *fakeClient {
	f.ids[account] = userID
	f.stories[userID] = stories
	for _, s := range stories {
		f.media[s.URL] = []byte("media-" + s.ID)
	}
	return f
}

func (f *fakeClient) Login(ctx context.Context, username, password string) (*instagram.Session, error) {
	return &instagram.Session{Username: username}, nil
}

func (f *fakeClient) UserIDByUsername(ctx context.Context, username string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.resolveCalls[username]++
	if err := f.resolveErr[username]; err != nil {
		return "", err
	}
	id, ok := f.ids[username]
	if !ok {
		return "", fmt.Errorf("unscripted account %s", username)
	}
	return id, nil
}

func (f *fakeClient) UserStories(ctx context.Context, userID string) ([]instagram.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.storyCalls = append(f.storyCalls, userID)
	if err := f.storiesErr[userID]; err != nil {
		return nil, err
	}
	return f.stories[userID], nil
}

func (f *fakeClient) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.downloads++
	if f.downloadErr != nil {
		return nil, f.downloadErr
	}
	data, ok := f.media[mediaURL]
	if !ok {
		return []byte("media"), nil
	}
	return data, nil
}

type sent struct {
	kind    string
	path    string
	caption string
	content string
}

// fakeSender records transmissions
type fakeSender struct {
	sent     []sent
	err      error
	attempts int
}

func (f *fakeSender) SendPhoto(ctx context.Context, path, caption string) error {
	return f.send("photo", path, caption)
}

func (f *fakeSender) SendVideo(ctx context.Context, path, caption string) error {
	return f.send("video", path, caption)
}

func (f *fakeSender) send(kind, path, caption string) error {
	f.attempts++
	if f.err != nil {
		return f.err
	}
	content, err := readFile(path)
	if err != nil {
		return err
	}
	f.sent = append(f.sent, sent{kind: kind, path: path, caption: caption, content: content})
	return nil
}

// fakeSessions hands out a new client on every re-authentication
type fakeSessions struct {
	clients   []*fakeClient
	current   int
	reauths   int
	reauthErr error
}

func (f *fakeSessions) Client() session.Client {
	if f.current >= len(f.clients) {
		return nil
	}
	return f.clients[f.current]
}

func (f *fakeSessions) Reauthenticate(ctx context.Context) error {
	f.reauths++
	if f.reauthErr != nil {
		return f.reauthErr
	}
	f.current++
	return nil
}

func photo(id, userID string) instagram.Story {
	return instagram.Story{ID: id, UserID: userID, Kind: instagram.MediaPhoto, URL: "https://cdn.example/" + id + ".jpg"}
}

func video(id, userID string) instagram.Story {
	return instagram.Story{ID: id, UserID: userID, Kind: instagram.MediaVideo, URL: "https://cdn.example/" + id + ".mp4"}
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	return string(data), err
}

// staticSessions always hands out the same client
type staticSessions struct {
	client  session.Client
	reauths int
}

func (s *staticSessions) Client() session.Client {
	return s.client
}

func (s *staticSessions) Reauthenticate(ctx context.Context) error {
	s.reauths++
	return nil
}
