package bili_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"bilifav/internal/bili"
)

// plantedSessions builds a session manager over a store that already holds a
// complete credential, the normal state for API calls.
func plantedSessions(t *testing.T, opts ...bili.SessionOption) (*bili.SessionManager, *bili.FileCredentialStore) {
	t.Helper()
	store := bili.NewFileCredentialStore(filepath.Join(t.TempDir(), "credential.toml"))
	err := store.Save(bili.Credential{SESSDATA: "sess", BiliJCT: "jct", DedeUserID: "42", IssuedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	sessions, err := bili.NewSessionManager(store, nil, opts...)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return sessions, store
}

func newTestClient(t *testing.T, sessions *bili.SessionManager, apiURL string) *bili.Client {
	t.Helper()
	client, err := bili.NewClient(sessions, nil, bili.WithAPIURL(apiURL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client
}

func TestNavDecodesAccount(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x/web-interface/nav" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); !strings.Contains(ua, "Mozilla") {
			t.Errorf("User-Agent = %q, want a browser identity", ua)
		}
		if ref := r.Header.Get("Referer"); ref != "https://www.bilibili.com" {
			t.Errorf("Referer = %q", ref)
		}
		cookie := r.Header.Get("Cookie")
		if !strings.Contains(cookie, "SESSDATA=sess") || !strings.Contains(cookie, "bili_jct=jct") {
			t.Errorf("Cookie = %q, want session cookies", cookie)
		}
		fmt.Fprint(w, `{"code":0,"data":{"mid":7,"uname":"tester","vipStatus":1}}`)
	}))
	defer server.Close()

	sessions, _ := plantedSessions(t)
	client := newTestClient(t, sessions, server.URL)

	account, err := client.Nav(context.Background())
	if err != nil {
		t.Fatalf("Nav: %v", err)
	}
	if account.Mid != 7 || account.Name != "tester" {
		t.Errorf("account = %+v", account)
	}
	if !account.Privileged() {
		t.Error("vipStatus 1 should report privileged")
	}
}

func TestNavRejectsMissingMid(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"uname":"tester"}}`)
	}))
	defer server.Close()

	sessions, _ := plantedSessions(t)
	client := newTestClient(t, sessions, server.URL)

	if _, err := client.Nav(context.Background()); !errors.Is(err, bili.ErrMalformedPayload) {
		t.Fatalf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestAPIErrorCarriesCodeAndEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":-400,"message":"request error"}`)
	}))
	defer server.Close()

	sessions, _ := plantedSessions(t)
	client := newTestClient(t, sessions, server.URL)

	_, err := client.Nav(context.Background())
	var apiErr *bili.APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if apiErr.Code != -400 || apiErr.Endpoint != "/x/web-interface/nav" {
		t.Errorf("apiErr = %+v", apiErr)
	}
	if apiErr.SessionInvalid() {
		t.Error("code -400 should not read as session invalid")
	}
	want := "/x/web-interface/nav: api code -400: request error"
	if apiErr.Error() != want {
		t.Errorf("Error() = %q, want %q", apiErr.Error(), want)
	}
}

func TestNullDataIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":null}`)
	}))
	defer server.Close()

	sessions, _ := plantedSessions(t)
	client := newTestClient(t, sessions, server.URL)

	if _, err := client.Nav(context.Background()); !errors.Is(err, bili.ErrMalformedPayload) {
		t.Fatalf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestHTTPErrorIncludesStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer server.Close()

	sessions, _ := plantedSessions(t)
	client := newTestClient(t, sessions, server.URL)

	_, err := client.Nav(context.Background())
	if err == nil || !strings.Contains(err.Error(), "returned 502") {
		t.Fatalf("err = %v, want status in message", err)
	}
}

func TestSessionInvalidTriggersReloginAndRetry(t *testing.T) {
	var navCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/x/web-interface/nav", func(w http.ResponseWriter, r *http.Request) {
		if navCalls.Add(1) == 1 {
			fmt.Fprint(w, `{"code":-101,"message":"account not logged in"}`)
			return
		}
		if cookie := r.Header.Get("Cookie"); !strings.Contains(cookie, "SESSDATA=fresh-sess") {
			t.Errorf("retry Cookie = %q, want refreshed session", cookie)
		}
		fmt.Fprint(w, `{"code":0,"data":{"mid":7,"uname":"tester","vipStatus":0}}`)
	})
	mux.HandleFunc("/x/passport-login/web/qrcode/generate", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, challengeBody)
	})
	mux.HandleFunc("/x/passport-login/web/qrcode/poll", func(w http.ResponseWriter, r *http.Request) {
		confirmLogin(w)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	var rendered bool
	sessions, store := plantedSessions(t,
		bili.WithPassportURL(server.URL),
		bili.WithPollInterval(time.Millisecond),
		bili.WithRenderer(func(string) { rendered = true }),
	)
	client := newTestClient(t, sessions, server.URL)

	account, err := client.Nav(context.Background())
	if err != nil {
		t.Fatalf("Nav: %v", err)
	}
	if account.Mid != 7 {
		t.Errorf("account = %+v", account)
	}
	if got := navCalls.Load(); got != 2 {
		t.Errorf("nav calls = %d, want 2", got)
	}
	if !rendered {
		t.Error("re-login should render a fresh challenge")
	}

	cred, ok := sessions.Current()
	if !ok || cred.SESSDATA != "fresh-sess" {
		t.Errorf("active credential = %+v", cred)
	}
	saved, err := store.Load()
	if err != nil {
		t.Fatalf("Load after re-login: %v", err)
	}
	if saved.SESSDATA != "fresh-sess" {
		t.Errorf("persisted SESSDATA = %q, want fresh-sess", saved.SESSDATA)
	}
}

func TestSessionInvalidRetriesExactlyOnce(t *testing.T) {
	var navCalls, challenges atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/x/web-interface/nav", func(w http.ResponseWriter, r *http.Request) {
		navCalls.Add(1)
		fmt.Fprint(w, `{"code":-101,"message":"account not logged in"}`)
	})
	mux.HandleFunc("/x/passport-login/web/qrcode/generate", func(w http.ResponseWriter, r *http.Request) {
		challenges.Add(1)
		fmt.Fprint(w, challengeBody)
	})
	mux.HandleFunc("/x/passport-login/web/qrcode/poll", func(w http.ResponseWriter, r *http.Request) {
		confirmLogin(w)
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	sessions, _ := plantedSessions(t,
		bili.WithPassportURL(server.URL),
		bili.WithPollInterval(time.Millisecond),
	)
	client := newTestClient(t, sessions, server.URL)

	_, err := client.Nav(context.Background())
	var apiErr *bili.APIError
	if !errors.As(err, &apiErr) || !apiErr.SessionInvalid() {
		t.Fatalf("err = %v, want session-invalid APIError", err)
	}
	if got := navCalls.Load(); got != 2 {
		t.Errorf("nav calls = %d, want exactly one retry", got)
	}
	if got := challenges.Load(); got != 1 {
		t.Errorf("challenge requests = %d, want 1", got)
	}
}

func TestCollectionsRequireLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request to %s", r.URL.Path)
	}))
	defer server.Close()

	store := bili.NewFileCredentialStore(filepath.Join(t.TempDir(), "credential.toml"))
	sessions, err := bili.NewSessionManager(store, nil)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	client := newTestClient(t, sessions, server.URL)

	if _, err := client.Collections(context.Background()); !errors.Is(err, bili.ErrNotLoggedIn) {
		t.Fatalf("err = %v, want ErrNotLoggedIn", err)
	}
}

func TestCollectionsPassesOwnerID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x/v3/fav/folder/created/list-all" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("up_mid"); got != "42" {
			t.Errorf("up_mid = %q, want 42", got)
		}
		fmt.Fprint(w, `{"code":0,"data":{"count":1,"list":[{"id":3,"title":"Music","media_count":12}]}}`)
	}))
	defer server.Close()

	sessions, _ := plantedSessions(t)
	client := newTestClient(t, sessions, server.URL)

	collections, err := client.Collections(context.Background())
	if err != nil {
		t.Fatalf("Collections: %v", err)
	}
	if len(collections) != 1 || collections[0].ID != 3 || collections[0].MediaCount != 12 {
		t.Errorf("collections = %+v", collections)
	}
}

func TestViewRejectsMissingStreamIdentifier(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"code":0,"data":{"bvid":"BV1xx411c7mD","title":"clip"}}`)
	}))
	defer server.Close()

	sessions, _ := plantedSessions(t)
	client := newTestClient(t, sessions, server.URL)

	if _, err := client.View(context.Background(), "BV1xx411c7mD"); !errors.Is(err, bili.ErrMalformedPayload) {
		t.Fatalf("err = %v, want ErrMalformedPayload", err)
	}
}

func TestPlayURLSendsNegotiationParams(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/x/player/playurl" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		for key, want := range map[string]string{
			"bvid":     "BV1xx411c7mD",
			"cid":      "99",
			"qn":       "80",
			"fnval":    "4048",
			"fnver":    "0",
			"fourk":    "1",
			"platform": "pc",
		} {
			if got := q.Get(key); got != want {
				t.Errorf("query %s = %q, want %q", key, got, want)
			}
		}
		fmt.Fprint(w, `{"code":0,"data":{"quality":80,"dash":{"video":[{"id":80,"baseUrl":"https://cdn.example/v.m4s","bandwidth":800}],"audio":[{"id":30280,"baseUrl":"https://cdn.example/a.m4s","bandwidth":192000}]}}}`)
	}))
	defer server.Close()

	sessions, _ := plantedSessions(t)
	client := newTestClient(t, sessions, server.URL)

	info, err := client.PlayURL(context.Background(), "BV1xx411c7mD", 99, 80, 4048)
	if err != nil {
		t.Fatalf("PlayURL: %v", err)
	}
	if info.Quality != 80 {
		t.Errorf("Quality = %d, want 80", info.Quality)
	}
	if info.Dash == nil || len(info.Dash.Video) != 1 || len(info.Dash.Audio) != 1 {
		t.Fatalf("dash payload = %+v", info.Dash)
	}
	if info.Dash.Video[0].BaseURL != "https://cdn.example/v.m4s" {
		t.Errorf("video BaseURL = %q", info.Dash.Video[0].BaseURL)
	}
}

func TestDownloadHeaders(t *testing.T) {
	sessions, _ := plantedSessions(t)
	client := newTestClient(t, sessions, "http://unused.invalid")

	headers := client.DownloadHeaders()
	if ua := headers.Get("User-Agent"); !strings.Contains(ua, "Mozilla") {
		t.Errorf("User-Agent = %q", ua)
	}
	if got := headers.Get("Referer"); got != "https://www.bilibili.com" {
		t.Errorf("Referer = %q", got)
	}
	if cookie := headers.Get("Cookie"); !strings.Contains(cookie, "SESSDATA=sess") {
		t.Errorf("Cookie = %q, want session cookies", cookie)
	}
}

func TestDownloadHeadersWithoutSession(t *testing.T) {
	store := bili.NewFileCredentialStore(filepath.Join(t.TempDir(), "credential.toml"))
	sessions, err := bili.NewSessionManager(store, nil)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	client := newTestClient(t, sessions, "http://unused.invalid")

	if cookie := client.DownloadHeaders().Get("Cookie"); cookie != "" {
		t.Errorf("Cookie = %q, want none while logged out", cookie)
	}
}
