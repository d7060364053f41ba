package bili

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"bilifav/internal/logging"
)

const (
	defaultAPIURL = "https://api.bilibili.com"

	// The service rejects requests without a browser User-Agent and the
	// site Referer.
	fixedUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"
	fixedReferer   = "https://www.bilibili.com"

	navPath          = "/x/web-interface/nav"
	collectionsPath  = "/x/v3/fav/folder/created/list-all"
	resourceListPath = "/x/v3/fav/resource/list"
	viewPath         = "/x/web-interface/view"
	playURLPath      = "/x/player/playurl"
)

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

func applyFixedHeaders(req *http.Request) {
	req.Header.Set("User-Agent", fixedUserAgent)
	req.Header.Set("Referer", fixedReferer)
	req.Header.Set("Accept", "application/json")
}

// ClientOption customises Client construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client used for API calls.
func WithHTTPClient(client HTTPDoer) ClientOption {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithAPIURL overrides the API base URL (used in tests).
func WithAPIURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.apiURL = strings.TrimRight(baseURL, "/")
	}
}

// Client is the authenticated accessor for the JSON API. All calls carry
// the fixed header pair plus the active credential's cookies, and run
// through the session-invalid interceptor.
type Client struct {
	httpClient HTTPDoer
	apiURL     string
	sessions   *SessionManager
	logger     *slog.Logger
}

// NewClient builds a Client on top of the given session manager.
func NewClient(sessions *SessionManager, logger *slog.Logger, opts ...ClientOption) (*Client, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session manager is nil")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	client := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		apiURL:     defaultAPIURL,
		sessions:   sessions,
		logger:     logger,
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// Nav returns the authenticated account summary, including membership
// status for the quality clamp.
func (c *Client) Nav(ctx context.Context) (*Account, error) {
	var account Account
	if err := c.getJSON(ctx, navPath, nil, &account); err != nil {
		return nil, err
	}
	if account.Mid == 0 {
		return nil, fmt.Errorf("%w: nav missing mid", ErrMalformedPayload)
	}
	return &account, nil
}

// Collections lists every favorites folder owned by the logged-in user.
func (c *Client) Collections(ctx context.Context) ([]CollectionSummary, error) {
	cred, ok := c.sessions.Current()
	if !ok {
		return nil, ErrNotLoggedIn
	}

	params := url.Values{}
	params.Set("up_mid", cred.DedeUserID)

	var list collectionList
	if err := c.getJSON(ctx, collectionsPath, params, &list); err != nil {
		return nil, err
	}
	return list.List, nil
}

// CollectionPage fetches one page of a collection's contents.
func (c *Client) CollectionPage(ctx context.Context, mediaID int64, pn, ps int) (*ResourcePage, error) {
	params := url.Values{}
	params.Set("media_id", strconv.FormatInt(mediaID, 10))
	params.Set("pn", strconv.Itoa(pn))
	params.Set("ps", strconv.Itoa(ps))

	var page ResourcePage
	if err := c.getJSON(ctx, resourceListPath, params, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// View fetches item metadata including the sub-part list.
func (c *Client) View(ctx context.Context, bvid string) (*VideoDetail, error) {
	params := url.Values{}
	params.Set("bvid", bvid)

	var detail VideoDetail
	if err := c.getJSON(ctx, viewPath, params, &detail); err != nil {
		return nil, err
	}
	if detail.CID == 0 && len(detail.Pages) == 0 {
		return nil, fmt.Errorf("%w: view for %s has no stream identifier", ErrMalformedPayload, bvid)
	}
	return &detail, nil
}

// PlayURL negotiates stream URLs for one page at the requested quality
// code and format value. Interpretation of the response belongs to the
// media package.
func (c *Client) PlayURL(ctx context.Context, bvid string, cid int64, qn, fnval int) (*PlayInfo, error) {
	params := url.Values{}
	params.Set("bvid", bvid)
	params.Set("cid", strconv.FormatInt(cid, 10))
	params.Set("qn", strconv.Itoa(qn))
	params.Set("fnval", strconv.Itoa(fnval))
	params.Set("fnver", "0")
	params.Set("fourk", "1")
	params.Set("platform", "pc")

	var info PlayInfo
	if err := c.getJSON(ctx, playURLPath, params, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// DownloadHeaders returns the header set stream downloads must present:
// the fixed pair plus the session cookies.
func (c *Client) DownloadHeaders() http.Header {
	headers := http.Header{}
	headers.Set("User-Agent", fixedUserAgent)
	headers.Set("Referer", fixedReferer)
	if cred, ok := c.sessions.Current(); ok {
		headers.Set("Cookie", cred.CookieHeader())
	}
	return headers
}

// getJSON performs an authenticated GET, decodes the envelope, and applies
// the session-invalid interception: one re-login plus one retry of the
// original call, never more.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	err := c.getJSONOnce(ctx, path, params, out)
	var apiErr *APIError
	if err == nil || !errors.As(err, &apiErr) || !apiErr.SessionInvalid() {
		return err
	}

	if _, err := c.sessions.Reauthenticate(ctx); err != nil {
		return fmt.Errorf("re-login after invalid session: %w", err)
	}
	return c.getJSONOnce(ctx, path, params, out)
}

func (c *Client) getJSONOnce(ctx context.Context, path string, params url.Values, out any) error {
	endpoint := c.apiURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	applyFixedHeaders(req)
	if cred, ok := c.sessions.Current(); ok {
		req.Header.Set("Cookie", cred.CookieHeader())
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%s returned %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	if env.Code != 0 {
		return &APIError{Code: env.Code, Message: env.Message, Endpoint: path}
	}
	if out == nil {
		return nil
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: %s returned no data", ErrMalformedPayload, path)
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s payload: %w", path, err)
	}
	return nil
}
