package box

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/file-intake/internal/infrastructure/resilience"
)

const (
	serviceName = "box"

	DefaultBaseURL        = "https://api.box.com"
	DefaultMaxFolderDepth = 64

	tokenPath       = "/oauth2/token"
	tokenSafetySkew = 60 * time.Second
)

type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	// SubjectType is "enterprise" or "user"; SubjectID is the matching id.
	SubjectType string
	SubjectID   string

	RequestsPerSecond float64
	Burst             int
	MaxFolderDepth    int
	Timeout           time.Duration
}

// Client talks to the Box content API with a client-credentials grant.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	executor   *resilience.Executor
	logger     *slog.Logger

	// streamClient has no overall timeout; downloads are bounded by ctx.
	streamClient *http.Client

	tokenMu     sync.RWMutex
	accessToken string
	tokenExpiry time.Time
	now         func() time.Time
}

func New(cfg Config, executor *resilience.Executor, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.SubjectType == "" {
		cfg.SubjectType = "enterprise"
	}
	if cfg.MaxFolderDepth <= 0 {
		cfg.MaxFolderDepth = DefaultMaxFolderDepth
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:          cfg,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
		limiter:      rate.NewLimiter(limit, cfg.Burst),
		executor:     executor,
		logger:       logger,
		now:          time.Now,
	}
}

func (c *Client) ensureAccessToken(ctx context.Context) (string, error) {
	c.tokenMu.RLock()
	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		token := c.accessToken
		c.tokenMu.RUnlock()
		return token, nil
	}
	c.tokenMu.RUnlock()

	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.accessToken != "" && c.now().Before(c.tokenExpiry) {
		return c.accessToken, nil
	}
	if err := c.refreshAccessToken(ctx); err != nil {
		return "", err
	}
	return c.accessToken, nil
}

// refreshAccessToken must be called with tokenMu held.
func (c *Client) refreshAccessToken(ctx context.Context) error {
	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", c.cfg.ClientID)
	form.Set("client_secret", c.cfg.ClientSecret)
	form.Set("box_subject_type", c.cfg.SubjectType)
	form.Set("box_subject_id", c.cfg.SubjectID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("box token request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resilience.NewStatusError(serviceName, "token", resp)
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return errors.New("box token response without access_token")
	}

	lifetime := time.Duration(token.ExpiresIn)*time.Second - tokenSafetySkew
	if lifetime < 0 {
		lifetime = 0
	}
	c.accessToken = token.AccessToken
	c.tokenExpiry = c.now().Add(lifetime)
	c.logger.Debug("box_token_refreshed", "expires_in_s", token.ExpiresIn)
	return nil
}

func (c *Client) dropToken(stale string) {
	c.tokenMu.Lock()
	if c.accessToken == stale {
		c.accessToken = ""
		c.tokenExpiry = time.Time{}
	}
	c.tokenMu.Unlock()
}

// send performs an authenticated GET. A 401 drops the cached token and the
// request is repeated once with a fresh one. The caller owns resp.Body.
func (c *Client) send(ctx context.Context, client *http.Client, operation, path string, query url.Values) (*http.Response, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	for attempt := 0; attempt < 2; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		token, err := c.ensureAccessToken(ctx)
		if err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("box %s request: %w", operation, err)
		}
		if resp.StatusCode == http.StatusUnauthorized && attempt == 0 {
			resp.Body.Close()
			c.dropToken(token)
			continue
		}
		if resp.StatusCode >= 300 {
			defer resp.Body.Close()
			return nil, resilience.NewStatusError(serviceName, operation, resp)
		}
		return resp, nil
	}
	return nil, fmt.Errorf("box %s: unauthorized after token refresh", operation)
}

func (c *Client) getJSON(ctx context.Context, operation, path string, query url.Values, out any) error {
	err := c.executor.Execute(ctx, "box."+operation, func(ctx context.Context) error {
		resp, err := c.send(ctx, c.httpClient, operation, path, query)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode %s response: %w", operation, err)
		}
		return nil
	}, resilience.ClassifyHTTP)
	return resilience.ToDomainError(operation, err)
}

func (c *Client) getFile(ctx context.Context, fileID string) (file, error) {
	var out file
	err := c.getJSON(ctx, "get_file", "/2.0/files/"+url.PathEscape(fileID), url.Values{"fields": {fileFields}}, &out)
	return out, err
}

func (c *Client) getFolder(ctx context.Context, folderID string) (folder, error) {
	var out folder
	err := c.getJSON(ctx, "get_folder", "/2.0/folders/"+url.PathEscape(folderID), url.Values{"fields": {folderFields}}, &out)
	return out, err
}

func (c *Client) download(ctx context.Context, fileID string) (io.ReadCloser, error) {
	var body io.ReadCloser
	err := c.executor.Execute(ctx, "box.download", func(ctx context.Context) error {
		resp, err := c.send(ctx, c.streamClient, "download", "/2.0/files/"+url.PathEscape(fileID)+"/content", nil)
		if err != nil {
			return err
		}
		body = resp.Body
		return nil
	}, resilience.ClassifyHTTP)
	if err != nil {
		return nil, resilience.ToDomainError("download", err)
	}
	return body, nil
}
