package instagram

import (
	"fmt"
	"net/url"
	"strings"
)

const (
	// BaseURL is the base URL for Instagram
	BaseURL = "https://www.instagram.com"

	// LoginPageEndpoint serves the csrftoken cookie needed to log in
	LoginPageEndpoint = "/accounts/login/"

	// LoginEndpoint accepts the web login form
	LoginEndpoint = "/api/v1/web/accounts/login/ajax/"

	// ProfileEndpoint is the endpoint pattern for user profiles
	ProfileEndpoint = "/api/v1/users/web_profile_info/"

	// ReelsMediaEndpoint returns the current stories of one or more users
	ReelsMediaEndpoint = "/api/v1/feed/reels_media/"

	// WebAppID is the application id the web client sends as X-IG-App-ID
	WebAppID = "936619743392459"

	// DefaultUserAgent is used when no user agent is configured
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
)

// GetProfileURL constructs the URL for fetching a user's profile
func GetProfileURL(baseURL, username string) string {
	params := url.Values{}
	params.Set("username", username)

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), ProfileEndpoint, params.Encode())
}

// GetReelsMediaURL constructs the URL for fetching a user's current stories
func GetReelsMediaURL(baseURL, userID string) string {
	params := url.Values{}
	params.Set("reel_ids", userID)

	return fmt.Sprintf("%s%s?%s", strings.TrimRight(baseURL, "/"), ReelsMediaEndpoint, params.Encode())
}

// GetLoginPageURL returns the login page URL
func GetLoginPageURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + LoginPageEndpoint
}

// GetLoginURL returns the login form submission URL
func GetLoginURL(baseURL string) string {
	return strings.TrimRight(baseURL, "/") + LoginEndpoint
}

// GetUserProfileURL constructs the public profile URL for a user
func GetUserProfileURL(username string) string {
	if username == "" {
		return ""
	}
	return fmt.Sprintf("%s/%s/", BaseURL, username)
}

// IsValidUsername checks if a username is valid according to Instagram rules
func IsValidUsername(username string) bool {
	if username == "" || len(username) > 30 {
		return false
	}

	// Instagram usernames can only contain letters, numbers, periods, and underscores
	for _, char := range username {
		if !((char >= 'a' && char <= 'z') ||
			(char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') ||
			char == '.' || char == '_') {
			return false
		}
	}

	return true
}

// SanitizeUsername strips a leading @ and trailing slashes or spaces
func SanitizeUsername(username string) string {
	username = strings.TrimSpace(username)
	username = strings.TrimPrefix(username, "@")
	return strings.TrimRight(username, "/ ")
}

// encodePassword formats a plaintext password the way the web login form expects
func encodePassword(password string, unix int64) string {
	return fmt.Sprintf("#PWD_INSTAGRAM_BROWSER:0:%d:%s", unix, password)
}
