package instagram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// MediaKind identifies how a story's media must be transmitted
type MediaKind string

const (
	MediaPhoto   MediaKind = "photo"
	MediaVideo   MediaKind = "video"
	MediaUnknown MediaKind = "unknown"
)

// Instagram media_type codes
const (
	mediaTypePhoto    = 1
	mediaTypeVideo    = 2
)

// Session is the serialized authentication state of a logged-in client
type Session struct {
	Username  string            `json:"username"`
	UserID    string            `json:"user_id"`
	Cookies   map[string]string `json:"cookies"`
	CSRFToken string            `json:"csrf_token"`
	DeviceID  string            `json:"device_id"`
	UserAgent string            `json:"user_agent,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Valid reports whether the session carries a session cookie
func (s *Session) Valid() bool {
	return s != nil && s.Cookies["sessionid"] != ""
}

// Story is one current story item of an account
type Story struct {
	ID      string
	UserID  string
	Kind    MediaKind
	URL     string
	TakenAt time.Time
}

// Extension returns the spool file extension for the story's media
func (s Story) Extension() string {
	if s.Kind == MediaVideo {
		return "mp4"
	}
	return "jpg"
}

// FlexID decodes identifiers Instagram sends either as numbers or strings
type FlexID string

func (f *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	if _, err := strconv.ParseInt(n.String(), 10, 64); err != nil {
		return fmt.Errorf("invalid id %s: %w", data, err)
	}
	*f = FlexID(n.String())
	return nil
}

func (f FlexID) String() string { return string(f) }

// ProfileResponse represents the web_profile_info response
type ProfileResponse struct {
	RequiresToLogin bool        `json:"requires_to_login"`
	Data            ProfileData `json:"data"`
	Status          string      `json:"status"`
	Message         string      `json:"message"`
}

// ProfileData wraps the user information in the response
type ProfileData struct {
	User *ProfileUser `json:"user"`
}

// ProfileUser represents an Instagram user profile
type ProfileUser struct {
	ID        FlexID `json:"id"`
	Username  string `json:"username"`
	IsPrivate bool   `json:"is_private"`
}

// ReelsMediaResponse represents the feed/reels_media response.
// Newer responses use the reels map, older ones the reels_media list.
type ReelsMediaResponse struct {
	Reels      map[string]Reel `json:"reels"`
	ReelsMedia []Reel          `json:"reels_media"`
	Status     string          `json:"status"`
	Message    string          `json:"message"`
}

// Reel is the story tray of one user
type Reel struct {
	ID    FlexID      `json:"id"`
	User  ReelUser    `json:"user"`
	Items []StoryItem `json:"items"`
}

// ReelUser is the owner of a reel
type ReelUser struct {
	PK       FlexID `json:"pk"`
	Username string `json:"username"`
}

// StoryItem is a raw story media item
type StoryItem struct {
	ID             string         `json:"id"`
	PK             FlexID         `json:"pk"`
	MediaType      int            `json:"media_type"`
	TakenAt        int64          `json:"taken_at"`
	ImageVersions2 ImageVersions  `json:"image_versions2"`
	VideoVersions  []VideoVersion `json:"video_versions"`
}

// ImageVersions lists the available renditions of a photo
type ImageVersions struct {
	Candidates []ImageCandidate `json:"candidates"`
}

// ImageCandidate is one photo rendition
type ImageCandidate struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// VideoVersion is one video rendition
type VideoVersion struct {
	URL    string `json:"url"`
	Type   int    `json:"type"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

// LoginResponse represents the web login ajax response
type LoginResponse struct {
	Authenticated     bool   `json:"authenticated"`
	User              bool   `json:"user"`
	UserID            FlexID `json:"userId"`
	Status            string `json:"status"`
	Message           string `json:"message"`
	CheckpointURL     string `json:"checkpoint_url"`
	TwoFactorRequired bool   `json:"two_factor_required"`
}

// apiStatus is the envelope Instagram uses for error bodies
type apiStatus struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	ErrorType     string `json:"error_type"`
	CheckpointURL string `json:"checkpoint_url"`
}

// toStory converts a raw item; the kind is MediaUnknown when neither a
// photo nor a video rendition can be identified
func (item StoryItem) toStory(userID string) Story {
	id := item.PK.String()
	if id == "" {
		id = item.ID
	}

	story := Story{
		ID:     id,
		UserID: userID,
		Kind:   MediaUnknown,
	}
	if item.TakenAt > 0 {
		story.TakenAt = time.Unix(item.TakenAt, 0).UTC()
	}

	switch item.MediaType {
	case mediaTypeVideo:
		if url := bestVideo(item.VideoVersions); url != "" {
			story.Kind = MediaVideo
			story.URL = url
		}
	case mediaTypePhoto:
		if url := bestImage(item.ImageVersions2.Candidates); url != "" {
			story.Kind = MediaPhoto
			story.URL = url
		}
	}

	return story
}

func bestImage(candidates []ImageCandidate) string {
	best := -1
	for i, c := range candidates {
		if c.URL == "" {
			continue
		}
		if best < 0 || c.Width*c.Height > candidates[best].Width*candidates[best].Height {
			best = i
		}
	}
	if best < 0 {
		return ""
	}
	return candidates[best].URL
}

func bestVideo(versions []VideoVersion) string {
	for _, v := range versions {
		if v.URL != "" {
			return v.URL
		}
	}
	return ""
}
