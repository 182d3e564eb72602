package seenstore

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-process Store. Tests use its error injection.
type MemoryStore struct {
	mu      sync.RWMutex
	stories map[string]SeenStory
	order   []string

	HasError    error
	RecordError error
	Records     int
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{stories: make(map[string]SeenStory)}
}

func (m *MemoryStore) Has(ctx context.Context, storyID string) (bool, error) {
	if m.HasError != nil {
		return false, m.HasError
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.stories[storyID]
	return ok, nil
}

func (m *MemoryStore) Record(ctx context.Context, storyID, userID string) error {
	if m.RecordError != nil {
		return m.RecordError
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.Records++
	if _, ok := m.stories[storyID]; ok {
		return nil
	}
	m.stories[storyID] = SeenStory{StoryID: storyID, UserID: userID, Timestamp: time.Now().UTC()}
	m.order = append(m.order, storyID)
	return nil
}

func (m *MemoryStore) List(ctx context.Context, limit int) ([]SeenStory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var stories []SeenStory
	for i := len(m.order) - 1; i >= 0; i-- {
		if limit > 0 && len(stories) == limit {
			break
		}
		stories = append(stories, m.stories[m.order[i]])
	}
	return stories, nil
}

// Len returns the number of recorded stories
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.stories)
}

func (m *MemoryStore) Close() error {
	return nil
}
