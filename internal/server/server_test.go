package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/headline-goat/trendline/internal/pipeline"
	"github.com/headline-goat/trendline/internal/server"
	"github.com/headline-goat/trendline/internal/testutil"
)

func setupTestServer(t *testing.T) *server.Server {
	t.Helper()

	s := testutil.SetupTestStore(t)
	ds := testutil.Series(t, "2024-01-01", testutil.TwoArm(), map[string][]*testutil.Counts{
		"Original":    {testutil.C(100, 10), testutil.C(100, 20), testutil.C(100, 30)},
		"Variation A": {testutil.C(100, 5), nil, testutil.C(100, 25)},
	})

	srv := server.New(s, pipeline.New(ds, zerolog.Nop()), zerolog.Nop(), 0, "")
	srv.SetTitle("Hero headline")
	return srv
}

func serve(srv *server.Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

// serveAPI sends req with the server's bearer token.
func serveAPI(srv *server.Server, req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+srv.Token())
	return serve(srv, req)
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

type windowResponse struct {
	View    string            `json:"view"`
	Zoom    int               `json:"zoom"`
	Visible []string          `json:"visible"`
	Total   int               `json:"total"`
	Buckets []pipeline.Bucket `json:"buckets"`
}

func TestHealth(t *testing.T) {
	srv := setupTestServer(t)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp server.HealthResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "ok" || resp.Variations != 2 || resp.Days != 3 {
		t.Errorf("unexpected health response: %+v", resp)
	}
	if resp.FirstDay != "2024-01-01" || resp.LastDay != "2024-01-03" {
		t.Errorf("unexpected span %s - %s", resp.FirstDay, resp.LastDay)
	}
}

func TestWindowAPI_Defaults(t *testing.T) {
	srv := setupTestServer(t)

	w := serveAPI(srv, httptest.NewRequest(http.MethodGet, "/api/window", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp windowResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.View != "day" || resp.Zoom != 100 || resp.Total != 3 {
		t.Errorf("unexpected window metadata: %+v", resp)
	}
	if len(resp.Buckets) != 3 {
		t.Fatalf("expected 3 buckets, got %d", len(resp.Buckets))
	}
	if resp.Buckets[1].Rates["Variation A"] != nil {
		t.Error("expected gap to stay nil in the window")
	}
	if got := resp.Buckets[2].Rates["Original"].Rate; got != 30 {
		t.Errorf("expected 30%% on day 3, got %v", got)
	}
}

func TestWindowAPI_QueryOverrides(t *testing.T) {
	srv := setupTestServer(t)

	w := serveAPI(srv, httptest.NewRequest(http.MethodGet, "/api/window?view=week&zoom=200", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp windowResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.View != "week" || resp.Total != 1 || len(resp.Buckets) != 1 {
		t.Fatalf("expected a single week bucket, got %+v", resp)
	}
	if resp.Buckets[0].Key != "Week of 2024-01-01" {
		t.Errorf("unexpected week key %q", resp.Buckets[0].Key)
	}
	// 60 conversions over 300 visits
	if got := resp.Buckets[0].Rates["Original"].Rate; got != 20 {
		t.Errorf("expected 20%% for the week, got %v", got)
	}
}

func TestWindowAPI_VisibleFilter(t *testing.T) {
	srv := setupTestServer(t)

	w := serveAPI(srv, httptest.NewRequest(http.MethodGet, "/api/window?visible="+url.QueryEscape("Variation A"), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp windowResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Buckets) != 2 {
		t.Errorf("expected day without Variation A data to be dropped, got %d buckets", len(resp.Buckets))
	}
}

func TestWindowAPI_Rejects(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name  string
		query string
		want  int
	}{
		{"bad view", "view=month", http.StatusBadRequest},
		{"zero zoom", "zoom=0", http.StatusBadRequest},
		{"negative zoom", "zoom=-25", http.StatusBadRequest},
		{"non-numeric zoom", "zoom=big", http.StatusBadRequest},
		{"unknown variation", "visible=Nope", http.StatusBadRequest},
		{"empty visible", "visible=", http.StatusConflict},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serveAPI(srv, httptest.NewRequest(http.MethodGet, "/api/window?"+tt.query, nil))
			if w.Code != tt.want {
				t.Errorf("expected status %d, got %d", tt.want, w.Code)
			}
		})
	}
}

func TestWindowAPI_Msgpack(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/window", nil)
	req.Header.Set("Accept", "application/msgpack")
	w := serveAPI(srv, req)

	if ct := w.Header().Get("Content-Type"); ct != "application/msgpack" {
		t.Fatalf("expected msgpack content type, got %s", ct)
	}

	var resp server.WindowResponse
	if err := msgpack.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode msgpack: %v", err)
	}
	if len(resp.Buckets) != 3 {
		t.Errorf("expected 3 buckets, got %d", len(resp.Buckets))
	}
}

func TestWindowAPI_CORS(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/window", nil)
	req.Header.Set("Origin", "https://example.com")
	w := serveAPI(srv, req)

	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("expected wildcard CORS header, got %q", got)
	}
}

func TestAPI_Unauthorized(t *testing.T) {
	srv := setupTestServer(t)

	for _, path := range []string{"/api/window?zoom=987654", "/api/tooltip?key=2024-01-02", "/api/prefs"} {
		w := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected status 401, got %d", path, w.Code)
		}
		if strings.Contains(w.Body.String(), "buckets") {
			t.Errorf("%s: expected no data without a token", path)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/window", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	if w := serve(srv, req); w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401 for a bad bearer token, got %d", w.Code)
	}
}

func TestAPI_DashboardCookie(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/window", nil)
	req.AddCookie(&http.Cookie{Name: "tl_token", Value: srv.Token()})
	w := serve(srv, req)
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200 with the dashboard cookie, got %d", w.Code)
	}
}

func TestWindowAPI_OffScaleZoom(t *testing.T) {
	srv := setupTestServer(t)

	w := serveAPI(srv, httptest.NewRequest(http.MethodGet, "/api/window?zoom=987654", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp windowResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Buckets) != 2 {
		t.Errorf("expected the minimum window of 2 buckets, got %d", len(resp.Buckets))
	}
}

func TestTooltipAPI(t *testing.T) {
	srv := setupTestServer(t)

	w := serveAPI(srv, httptest.NewRequest(http.MethodGet, "/api/tooltip?key=2024-01-02", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}

	var resp struct {
		Key     string `json:"key"`
		Entries []struct {
			Name         string  `json:"name"`
			Rate         float64 `json:"rate"`
			IsWinner     bool    `json:"is_winner"`
			Interpolated bool    `json:"interpolated"`
			Color        string  `json:"color"`
		} `json:"entries"`
	}
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(resp.Entries))
	}
	first, second := resp.Entries[0], resp.Entries[1]
	if first.Name != "Original" || first.Rate != 20 || !first.IsWinner || first.Interpolated {
		t.Errorf("unexpected first entry: %+v", first)
	}
	if second.Name != "Variation A" || second.Rate != 15 || second.IsWinner || !second.Interpolated {
		t.Errorf("unexpected second entry: %+v", second)
	}
	if !strings.HasPrefix(first.Color, "#") {
		t.Errorf("expected a hex color, got %q", first.Color)
	}
}

func TestTooltipAPI_UnknownKey(t *testing.T) {
	srv := setupTestServer(t)

	w := serveAPI(srv, httptest.NewRequest(http.MethodGet, "/api/tooltip?key=2030-01-01", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `"entries":[]`) {
		t.Errorf("expected empty entries, got %s", w.Body.String())
	}
}

func TestTooltipAPI_RequiresKey(t *testing.T) {
	srv := setupTestServer(t)

	w := serveAPI(srv, httptest.NewRequest(http.MethodGet, "/api/tooltip", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", w.Code)
	}
}

func TestPrefsAPI_CreatesProfile(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/prefs", strings.NewReader(`{"action":"view","value":"week"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serveAPI(srv, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}

	profile := cookieNamed(w, "tl_profile")
	if profile == nil {
		t.Fatal("expected tl_profile cookie to be set")
	}

	// Saved view applies to later requests
	req = httptest.NewRequest(http.MethodGet, "/api/window", nil)
	req.AddCookie(profile)
	w = serveAPI(srv, req)

	var resp windowResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.View != "week" {
		t.Errorf("expected saved week view, got %s", resp.View)
	}
}

func TestPrefsAPI_LastVisible(t *testing.T) {
	srv := setupTestServer(t)

	post := func(cookie *http.Cookie, form url.Values) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/prefs", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		if cookie != nil {
			req.AddCookie(cookie)
		}
		return serveAPI(srv, req)
	}

	w := post(nil, url.Values{"action": {"toggle"}, "value": {"Original"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	profile := cookieNamed(w, "tl_profile")
	if profile == nil {
		t.Fatal("expected tl_profile cookie to be set")
	}

	w = post(profile, url.Values{"action": {"toggle"}, "value": {"Variation A"}})
	if w.Code != http.StatusConflict {
		t.Errorf("expected status 409 when hiding the last variation, got %d", w.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/prefs", nil)
	req.AddCookie(profile)
	w = serveAPI(srv, req)

	var prefs server.PrefsResponse
	if err := json.NewDecoder(w.Body).Decode(&prefs); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(prefs.Visible) != 1 || prefs.Visible[0] != "Variation A" {
		t.Errorf("expected [Variation A] to stay visible, got %v", prefs.Visible)
	}
}

func TestPrefsAPI_RejectsBadInput(t *testing.T) {
	srv := setupTestServer(t)

	tests := []struct {
		name string
		body string
	}{
		{"unknown action", `{"action":"explode"}`},
		{"zoom off scale", `{"action":"zoom","value":"110"}`},
		{"bad theme", `{"action":"theme","value":"sepia"}`},
		{"bad line style", `{"action":"line_style","value":"wavy"}`},
		{"invalid json", `{"action":`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/prefs", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			w := serveAPI(srv, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected status 400, got %d", w.Code)
			}
			if cookieNamed(w, "tl_profile") != nil {
				t.Error("expected no profile to be created on failure")
			}
		})
	}
}

func TestDashboard_Unauthorized(t *testing.T) {
	srv := setupTestServer(t)

	for _, path := range []string{"/dashboard", "/chart.png"} {
		w := serve(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s: expected status 401, got %d", path, w.Code)
		}
	}
}

func TestDashboard_InvalidToken(t *testing.T) {
	srv := setupTestServer(t)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/dashboard?token=wrong", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", w.Code)
	}
}

func TestDashboard_ValidToken(t *testing.T) {
	srv := setupTestServer(t)

	w := serve(srv, httptest.NewRequest(http.MethodGet, "/dashboard?token="+srv.Token(), nil))
	if w.Code != http.StatusFound {
		t.Errorf("expected status 302 (redirect), got %d", w.Code)
	}
	if cookieNamed(w, "tl_token") == nil {
		t.Error("expected tl_token cookie to be set")
	}
	if loc := w.Header().Get("Location"); strings.Contains(loc, "token=") {
		t.Errorf("expected token to be stripped from redirect, got %s", loc)
	}
}

func TestDashboard_WithCookie(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/dashboard?hover=2024-01-02", nil)
	req.AddCookie(&http.Cookie{Name: "tl_token", Value: srv.Token()})
	w := serve(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "text/html") {
		t.Errorf("expected HTML content type, got %s", ct)
	}
	if cookieNamed(w, "tl_profile") == nil {
		t.Error("expected first visit to create a profile")
	}

	body := w.Body.String()
	for _, want := range []string{"Hero headline", "Variation A", "20.00%", "interpolated"} {
		if !strings.Contains(body, want) {
			t.Errorf("expected dashboard to contain %q", want)
		}
	}
}

func TestDashboardPrefs(t *testing.T) {
	srv := setupTestServer(t)
	token := &http.Cookie{Name: "tl_token", Value: srv.Token()}

	form := url.Values{"action": {"theme"}, "value": {"dark"}}
	req := httptest.NewRequest(http.MethodPost, "/dashboard/prefs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(token)
	w := serve(srv, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", w.Code)
	}
	profile := cookieNamed(w, "tl_profile")
	if profile == nil {
		t.Fatal("expected tl_profile cookie to be set")
	}

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(token)
	req.AddCookie(profile)
	w = serve(srv, req)
	if !strings.Contains(w.Body.String(), `data-theme="dark"`) {
		t.Error("expected saved dark theme on the dashboard")
	}
}

func TestDashboardPrefs_ErrorRedirect(t *testing.T) {
	srv := setupTestServer(t)

	form := url.Values{"action": {"zoom"}, "value": {"999"}}
	req := httptest.NewRequest(http.MethodPost, "/dashboard/prefs", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.AddCookie(&http.Cookie{Name: "tl_token", Value: srv.Token()})
	w := serve(srv, req)

	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected status 303, got %d", w.Code)
	}
	if loc := w.Header().Get("Location"); !strings.HasPrefix(loc, "/dashboard?error=") {
		t.Errorf("expected error redirect, got %s", loc)
	}
}

func TestChart(t *testing.T) {
	srv := setupTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/chart.png", nil)
	req.AddCookie(&http.Cookie{Name: "tl_token", Value: srv.Token()})
	w := serve(srv, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("expected image/png, got %s", ct)
	}
	if !strings.HasPrefix(w.Body.String(), "\x89PNG") {
		t.Error("expected PNG signature")
	}
}
