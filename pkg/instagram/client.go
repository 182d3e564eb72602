package instagram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	errs "igrelay/pkg/errors"
	"igrelay/pkg/logger"
	"igrelay/pkg/ratelimit"
)

// maxMediaSize caps a single story download
const maxMediaSize = 64 << 20

// Client represents an Instagram web API client.
//
// A Client is bound to at most one Session. Re-authentication builds a new
// Client instead of mutating an existing one.
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	baseURL    string
	logger     logger.Logger
	limiter    ratelimit.Limiter
	session    *Session
	now        func() time.Time
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL points the client at a different host
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithLimiter paces every request through limiter
func WithLimiter(limiter ratelimit.Limiter) Option {
	return func(c *Client) {
		c.limiter = limiter
	}
}

// WithUserAgent overrides the default browser user agent
func WithUserAgent(userAgent string) Option {
	return func(c *Client) {
		if userAgent != "" {
			c.headers["User-Agent"] = userAgent
		}
	}
}

// WithSession binds an existing session to the client
func WithSession(session *Session) Option {
	return func(c *Client) {
		c.session = session
	}
}

// NewClient creates a new Instagram API client
func NewClient(timeout time.Duration, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		headers: map[string]string{
			"User-Agent":      DefaultUserAgent,
			"Accept":          "*/*",
			"Accept-Language": "en-US,en;q=0.9",
			"X-IG-App-ID":     WebAppID,
		},
		baseURL: BaseURL,
		logger:  log,
		limiter: ratelimit.NewPerMinute(0, 0),
		now:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}
	if c.limiter == nil {
		c.limiter = ratelimit.NewPerMinute(0, 0)
	}

	return c
}

// Session returns the session bound to the client, or nil
func (c *Client) Session() *Session {
	return c.session
}

// Login performs a full username/password login and binds the resulting
// session to the client
func (c *Client) Login(ctx context.Context, username, password string) (*Session, error) {
	if username == "" || password == "" {
		return nil, errs.New(errs.ErrorTypeAuth, 0, "instagram username and password are required")
	}

	c.logger.InfoWithFields("logging in to Instagram", map[string]interface{}{
		"username": username,
	})

	cookies := make(map[string]string)

	req, err := c.newRequest(ctx, http.MethodGet, GetLoginPageURL(c.baseURL), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	collectCookies(cookies, resp)
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))
	resp.Body.Close()

	csrf := cookies["csrftoken"]
	if csrf == "" {
		return nil, errs.New(errs.ErrorTypeParsing, resp.StatusCode, "login page did not set a csrftoken cookie")
	}

	form := url.Values{}
	form.Set("username", username)
	form.Set("enc_password", encodePassword(password, c.now().Unix()))
	form.Set("queryParams", "{}")
	form.Set("optIntoOneTap", "false")

	req, err = c.newRequest(ctx, http.MethodPost, GetLoginURL(c.baseURL), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-CSRFToken", csrf)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Referer", GetLoginPageURL(c.baseURL))
	for name, value := range cookies {
		req.AddCookie(&http.Cookie{Name: name, Value: value})
	}

	var loginResp LoginResponse
	resp, err = c.doRequest(req)
	if err != nil {
		return nil, err
	}
	collectCookies(cookies, resp)
	if err := c.decodeJSON(resp, &loginResp); err != nil {
		return nil, err
	}

	switch {
	case loginResp.CheckpointURL != "" || loginResp.Message == "checkpoint_required":
		return nil, errs.New(errs.ErrorTypeChallenge, resp.StatusCode, "login requires a checkpoint challenge")
	case loginResp.TwoFactorRequired:
		return nil, errs.New(errs.ErrorTypeChallenge, resp.StatusCode, "login requires two-factor authentication")
	case !loginResp.Authenticated:
		return nil, errs.New(errs.ErrorTypeAuth, resp.StatusCode, "login rejected for %s", username)
	}

	userID := loginResp.UserID.String()
	if userID == "" {
		userID = cookies["ds_user_id"]
	}
	if cookies["csrftoken"] != "" {
		csrf = cookies["csrftoken"]
	}

	session := &Session{
		Username:  username,
		UserID:    userID,
		Cookies:   cookies,
		CSRFToken: csrf,
		DeviceID:  uuid.NewString(),
		UserAgent: c.headers["User-Agent"],
		CreatedAt: c.now().UTC(),
	}
	c.session = session

	c.logger.InfoWithFields("logged in to Instagram", map[string]interface{}{
		"username": username,
		"user_id":  userID,
	})

	return session, nil
}

// UserIDByUsername resolves an account handle to its numeric user id
func (c *Client) UserIDByUsername(ctx context.Context, username string) (string, error) {
	var response ProfileResponse
	if err := c.GetJSON(ctx, GetProfileURL(c.baseURL, username), &response); err != nil {
		return "", err
	}

	if response.RequiresToLogin {
		return "", errs.New(errs.ErrorTypeAuth, http.StatusUnauthorized, "Instagram requires authentication to view %s", username)
	}
	if response.Data.User == nil || response.Data.User.ID == "" {
		return "", errs.New(errs.ErrorTypeNotFound, http.StatusNotFound, "user %s not found", username)
	}

	return response.Data.User.ID.String(), nil
}

// UserStories returns the current stories of a user, oldest first
func (c *Client) UserStories(ctx context.Context, userID string) ([]Story, error) {
	var response ReelsMediaResponse
	if err := c.GetJSON(ctx, GetReelsMediaURL(c.baseURL, userID), &response); err != nil {
		return nil, err
	}

	reel, ok := response.Reels[userID]
	if !ok {
		for _, r := range response.ReelsMedia {
			if r.ID.String() == userID || r.User.PK.String() == userID {
				reel, ok = r, true
				break
			}
		}
	}
	if !ok {
		c.logger.DebugWithFields("no active stories", map[string]interface{}{
			"user_id": userID,
		})
		return nil, nil
	}

	stories := make([]Story, 0, len(reel.Items))
	for _, item := range reel.Items {
		story := item.toStory(userID)
		if story.ID == "" {
			c.logger.WarnWithFields("skipping story item without id", map[string]interface{}{
				"user_id":    userID,
				"media_type": item.MediaType,
			})
			continue
		}
		stories = append(stories, story)
	}

	c.logger.DebugWithFields("fetched stories", map[string]interface{}{
		"user_id": userID,
		"count":   len(stories),
	})

	return stories, nil
}

// DownloadMedia downloads the media payload behind a story URL
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	c.logger.DebugWithFields("downloading media", map[string]interface{}{
		"url": mediaURL,
	})

	req, err := c.newRequest(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, c.checkResponseStatus(resp, body)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaSize+1))
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read media")
	}
	if len(data) > maxMediaSize {
		return nil, errs.New(errs.ErrorTypeParsing, resp.StatusCode, "media exceeds %d bytes", maxMediaSize)
	}
	if len(data) == 0 {
		return nil, errs.New(errs.ErrorTypeParsing, resp.StatusCode, "empty media payload")
	}

	c.logger.DebugWithFields("downloaded media", map[string]interface{}{
		"url":  mediaURL,
		"size": len(data),
	})

	return data, nil
}

// GetJSON performs a GET request and decodes the JSON response
func (c *Client) GetJSON(ctx context.Context, rawURL string, target interface{}) error {
	req, err := c.newRequest(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return err
	}

	return c.decodeJSON(resp, target)
}

func (c *Client) newRequest(ctx context.Context, method, rawURL string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, err, "failed to create request")
	}
	return req, nil
}

// doRequest paces, decorates and sends a request
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	for key, value := range c.headers {
		req.Header.Set(key, value)
	}
	if c.session != nil && c.sameHost(req.URL) {
		for name, value := range c.session.Cookies {
			req.AddCookie(&http.Cookie{Name: name, Value: value})
		}
		if c.session.CSRFToken != "" && req.Header.Get("X-CSRFToken") == "" {
			req.Header.Set("X-CSRFToken", c.session.CSRFToken)
		}
	}

	start := time.Now()
	c.logger.DebugWithFields("sending HTTP request", map[string]interface{}{
		"method": req.Method,
		"url":    req.URL.String(),
	})

	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, errs.Wrap(errs.ErrorTypeNetwork, err, "request failed")
	}

	c.logger.DebugWithFields("HTTP request completed", map[string]interface{}{
		"method":   req.Method,
		"url":      req.URL.String(),
		"status":   resp.StatusCode,
		"duration": duration,
	})

	return resp, nil
}

// decodeJSON checks the status and decodes the body, closing it
func (c *Client) decodeJSON(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errs.Wrap(errs.ErrorTypeNetwork, err, "failed to read response body")
	}

	if err := c.checkResponseStatus(resp, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, target); err != nil {
		bodyPreview := string(body)
		if len(bodyPreview) > 200 {
			bodyPreview = bodyPreview[:200] + "..."
		}

		c.logger.ErrorWithFields("failed to parse JSON response", map[string]interface{}{
			"url":          resp.Request.URL.String(),
			"status":       resp.StatusCode,
			"error":        err.Error(),
			"body_preview": bodyPreview,
		})
		return errs.New(errs.ErrorTypeParsing, resp.StatusCode, "failed to parse JSON: %v", err)
	}

	return nil
}

// checkResponseStatus maps HTTP and Instagram status signals onto typed errors
func (c *Client) checkResponseStatus(resp *http.Response, body []byte) error {
	var status apiStatus
	_ = json.Unmarshal(body, &status)

	fields := map[string]interface{}{
		"status": resp.StatusCode,
		"url":    resp.Request.URL.String(),
	}

	// unauthenticated API calls get redirected to the login page
	if resp.Request.URL.Path == LoginPageEndpoint && resp.Request.Method == http.MethodGet &&
		resp.Request.Response != nil {
		c.logger.WarnWithFields("redirected to login", fields)
		return errs.New(errs.ErrorTypeAuth, resp.StatusCode, "redirected to login page")
	}

	switch {
	case status.Message == "login_required" || status.ErrorType == "login_required":
		c.logger.WarnWithFields("session rejected", fields)
		return errs.New(errs.ErrorTypeAuth, resp.StatusCode, "login_required")
	case status.Message == "checkpoint_required" || status.Message == "challenge_required" ||
		status.CheckpointURL != "":
		c.logger.WarnWithFields("checkpoint challenge", fields)
		return errs.New(errs.ErrorTypeChallenge, resp.StatusCode, "%s", status.Message)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		if status.Status == "fail" && status.Message != "" {
			return errs.New(errs.ErrorTypeServerError, resp.StatusCode, "%s", status.Message)
		}
		return nil
	case http.StatusUnauthorized:
		c.logger.WarnWithFields("authentication error", fields)
		return errs.New(errs.ErrorTypeAuth, resp.StatusCode, "authentication required")
	case http.StatusForbidden:
		// only a login_required body means the session is gone
		c.logger.WarnWithFields("access forbidden", fields)
		return errs.New(errs.ErrorTypeForbidden, resp.StatusCode, "access forbidden")
	case http.StatusNotFound:
		c.logger.WarnWithFields("resource not found", fields)
		return errs.New(errs.ErrorTypeNotFound, resp.StatusCode, "resource not found")
	case http.StatusTooManyRequests:
		c.logger.WarnWithFields("rate limit exceeded", fields)
		return errs.New(errs.ErrorTypeRateLimit, resp.StatusCode, "rate limit exceeded")
	default:
		if resp.StatusCode >= 500 {
			c.logger.ErrorWithFields("server error", fields)
			return errs.New(errs.ErrorTypeServerError, resp.StatusCode, "server error")
		}
		if resp.StatusCode >= 400 {
			c.logger.ErrorWithFields("unexpected API error", fields)
			return errs.New(errs.ErrorTypeClient, resp.StatusCode, "unexpected status code: %d", resp.StatusCode)
		}
		return nil
	}
}

func (c *Client) sameHost(u *url.URL) bool {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return false
	}
	return strings.EqualFold(base.Host, u.Host)
}

func collectCookies(into map[string]string, resp *http.Response) {
	for _, cookie := range resp.Cookies() {
		if cookie.Value == "" || cookie.MaxAge < 0 {
			delete(into, cookie.Name)
			continue
		}
		into[cookie.Name] = cookie.Value
	}
}
