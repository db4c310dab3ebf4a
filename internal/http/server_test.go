package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"faturas/internal/cache"
	"faturas/internal/core"
	"faturas/internal/dashboard"
	"faturas/internal/documents"
	"faturas/internal/export"
	"faturas/internal/records"
	"faturas/internal/sources/memory"
)

func invoice(account, installation, month, consumed string) core.Invoice {
	return core.Invoice{
		AccountID:                      account,
		InstallationID:                 installation,
		BillingMonth:                   month,
		ConsumedEnergyKWh:              core.MustAmount(consumed),
		DistributedGenerationEnergyKWh: core.MustAmount("10"),
		OffsetEnergyKWh:                core.MustAmount("20"),
		EnergyCost:                     core.MustAmount("100.50"),
		DistributedGenerationCost:      core.MustAmount("5"),
		IlluminationContribution:       core.MustAmount("2.25"),
		CompensationSavings:            core.MustAmount("30"),
	}
}

func fixtureRecords() []core.Invoice {
	return []core.Invoice{
		invoice("X", "I1", "JAN/24", "100"),
		invoice("X", "I1", "FEB/24", "110"),
		invoice("Y", "I2", "JAN/24", "50"),
		invoice("Z", "", "MAR/24", "70"),
	}
}

type fakeFetcher struct {
	mu   sync.Mutex
	keys []core.DocumentKey
	data []byte
	err  error
}

func (f *fakeFetcher) FetchDocument(_ context.Context, key core.DocumentKey) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, key)
	return f.data, f.err
}

// flakySource succeeds once, then fails.
type flakySource struct {
	mu      sync.Mutex
	records []core.Invoice
	calls   int
}

func (s *flakySource) LoadAll(context.Context) ([]core.Invoice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.calls > 1 {
		return nil, &core.FetchError{Op: "load records", URL: "http://upstream/records", StatusCode: 500}
	}
	return s.records, nil
}

func newTestServer(t *testing.T, opts Options) *Server {
	t.Helper()
	if opts.Store == nil {
		src := memory.New(fixtureRecords())
		opts.Store = records.NewStore(src, nil)
		opts.Querier = src
	}
	if opts.Views == nil {
		opts.Views = cache.NewLRUCache[dashboard.View](10, time.Minute)
	}
	srv := NewServer(opts)
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func mustLoad(t *testing.T, srv *Server) {
	t.Helper()
	if _, err := srv.store.Load(context.Background()); err != nil {
		t.Fatalf("load: %v", err)
	}
}

// client replays the session cookie between requests.
type client struct {
	t       *testing.T
	srv     *Server
	cookies []*http.Cookie
}

func (c *client) do(req *http.Request) *httptest.ResponseRecorder {
	c.t.Helper()
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rr := httptest.NewRecorder()
	c.srv.Handler.ServeHTTP(rr, req)
	if set := rr.Result().Cookies(); len(set) > 0 {
		c.cookies = set
	}
	return rr
}

func (c *client) get(path string) *httptest.ResponseRecorder {
	return c.do(httptest.NewRequest(http.MethodGet, path, nil))
}

func (c *client) postForm(path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return c.do(req)
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), v); err != nil {
		t.Fatalf("decode %q: %v", rr.Body.String(), err)
	}
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}

	if rr := c.get("/readyz"); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("readyz before load status=%d", rr.Code)
	}
	mustLoad(t, srv)

	rr := c.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d body=%s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	for _, want := range []string{"Faturas de energia", `value="X"`, `value="Y"`, "Todas as faturas", "FEB/24"} {
		if !strings.Contains(body, want) {
			t.Errorf("index body missing %q", want)
		}
	}
	if len(c.cookies) == 0 || c.cookies[0].Name != sessionCookie {
		t.Fatalf("expected %s cookie, got %v", sessionCookie, c.cookies)
	}
	if rr.Header().Get("X-Frame-Options") != "DENY" {
		t.Errorf("missing security headers")
	}

	for _, path := range []string{"/healthz", "/readyz"} {
		if rr := c.get(path); rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}
	if rr := c.get("/nope"); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestSessionCookieOnlyReusesIssuedIDs(t *testing.T) {
	srv := newTestServer(t, Options{})
	mustLoad(t, srv)

	planted := strings.Repeat("a", 32)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: planted})
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)

	cookies := rr.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value == planted {
		t.Fatalf("expected a freshly issued session cookie, got %v", cookies)
	}
	if _, ok := srv.sessions.Get(planted); ok {
		t.Fatalf("client-chosen id %q became a session", planted)
	}

	c := &client{t: t, srv: srv, cookies: cookies}
	rr = c.get("/")
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatalf("issued session should be reused without a new cookie")
	}
}

func TestDashboardAPI(t *testing.T) {
	srv := newTestServer(t, Options{})
	mustLoad(t, srv)
	c := &client{t: t, srv: srv}

	var all dashboard.View
	decodeJSON(t, c.get("/api/dashboard"), &all)
	if all.Selector != core.SelectorAll || all.Records != 4 || len(all.Energy) != 4 {
		t.Fatalf("unexpected all view: %+v", all)
	}

	var x dashboard.View
	decodeJSON(t, c.get("/api/dashboard?account=X"), &x)
	if x.Selector != "X" || len(x.Energy) != 2 {
		t.Fatalf("unexpected X view: %+v", x)
	}
	if got := x.Energy[1].Consumption.String(); got != "120" {
		t.Errorf("FEB consumption = %s, want 120", got)
	}
	if got := x.Monetary[0].TotalValue.String(); got != "107.75" {
		t.Errorf("JAN total = %s, want 107.75", got)
	}

	// Without the parameter the session keeps its active selector.
	var again dashboard.View
	decodeJSON(t, c.get("/api/dashboard"), &again)
	if again.Selector != "X" {
		t.Errorf("active selector = %q, want X", again.Selector)
	}

	if rr := c.get("/api/dashboard?account=W"); rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown account status=%d", rr.Code)
	}

	rr := c.get("/ui/dashboard?account=Y")
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), `id="dashboard"`) {
		t.Fatalf("partial status=%d body=%s", rr.Code, rr.Body.String())
	}

	var accounts struct {
		All      string   `json:"all"`
		Accounts []string `json:"accounts"`
	}
	decodeJSON(t, c.get("/api/accounts"), &accounts)
	if accounts.All != "all" || strings.Join(accounts.Accounts, ",") != "X,Y,Z" {
		t.Fatalf("accounts = %+v", accounts)
	}
}

func TestDashboardXLSX(t *testing.T) {
	srv := newTestServer(t, Options{})
	mustLoad(t, srv)
	c := &client{t: t, srv: srv}

	rr := c.get("/api/dashboard.xlsx?account=X")
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != export.ContentTypeXLSX {
		t.Errorf("content type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "faturas-X.xlsx") {
		t.Errorf("content disposition = %q", cd)
	}
	f, err := excelize.OpenReader(bytes.NewReader(rr.Body.Bytes()))
	if err != nil {
		t.Fatalf("open workbook: %v", err)
	}
	defer f.Close()
	rows, err := f.GetRows("Energy")
	if err != nil {
		t.Fatalf("rows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("energy rows = %d, want header + 2", len(rows))
	}
}

func TestLibraryFlow(t *testing.T) {
	fetcher := &fakeFetcher{data: []byte("%PDF-1.4 fake")}
	srv := newTestServer(t, Options{Downloader: documents.NewDownloader(fetcher, nil, nil)})
	mustLoad(t, srv)
	c := &client{t: t, srv: srv}

	rr := c.postForm("/api/library/account", url.Values{"account": {"X"}})
	if rr.Code != http.StatusOK {
		t.Fatalf("account status=%d body=%s", rr.Code, rr.Body.String())
	}
	var st libraryStatus
	decodeJSON(t, rr, &st)
	if st.State != "AccountChosen" || strings.Join(st.Months, ",") != "JAN/24,FEB/24" {
		t.Fatalf("status after account = %+v", st)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "library:months") {
		t.Errorf("missing months trigger: %q", rr.Header().Get("HX-Trigger"))
	}

	if rr := c.postForm("/api/library/month", url.Values{"month": {"FEB/24"}}); rr.Code != http.StatusOK {
		t.Fatalf("month status=%d body=%s", rr.Code, rr.Body.String())
	}

	rr = c.postForm("/api/library/download", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("download status=%d body=%s", rr.Code, rr.Body.String())
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "I1-02-2024.pdf") {
		t.Errorf("content disposition = %q", cd)
	}
	if rr.Body.String() != "%PDF-1.4 fake" {
		t.Errorf("body = %q", rr.Body.String())
	}
	want := core.DocumentKey{InstallationID: "I1", Month: "02", Year: "2024"}
	if len(fetcher.keys) != 1 || fetcher.keys[0] != want {
		t.Fatalf("fetched keys = %+v, want [%+v]", fetcher.keys, want)
	}

	// The month can be posted together with the download.
	rr = c.postForm("/api/library/download", url.Values{"month": {"JAN/24"}})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Header().Get("Content-Disposition"), "I1-01-2024.pdf") {
		t.Fatalf("download with month status=%d cd=%q", rr.Code, rr.Header().Get("Content-Disposition"))
	}
}

func TestLibraryHTMXMonths(t *testing.T) {
	srv := newTestServer(t, Options{})
	mustLoad(t, srv)
	c := &client{t: t, srv: srv}

	req := httptest.NewRequest(http.MethodPost, "/api/library/account", strings.NewReader("account=Y"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	rr := c.do(req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), `<option value="JAN/24">`) {
		t.Fatalf("month picker missing: %s", rr.Body.String())
	}
}

func TestLibraryErrors(t *testing.T) {
	fetcher := &fakeFetcher{err: &core.FetchError{Op: "fetch document", URL: "http://upstream/documents", StatusCode: 500}}
	srv := newTestServer(t, Options{Downloader: documents.NewDownloader(fetcher, nil, nil)})
	mustLoad(t, srv)

	tests := []struct {
		name   string
		steps  []url.Values
		path   string
		form   url.Values
		status int
	}{
		{
			name:   "month before account",
			path:   "/api/library/month",
			form:   url.Values{"month": {"JAN/24"}},
			status: http.StatusConflict,
		},
		{
			name:   "download before month",
			steps:  []url.Values{{"account": {"X"}}},
			path:   "/api/library/download",
			status: http.StatusConflict,
		},
		{
			name:   "unknown account",
			path:   "/api/library/account",
			form:   url.Values{"account": {"W"}},
			status: http.StatusConflict,
		},
		{
			name:   "missing account field",
			path:   "/api/library/account",
			status: http.StatusBadRequest,
		},
		{
			name:   "month outside index",
			steps:  []url.Values{{"account": {"X"}}},
			path:   "/api/library/month",
			form:   url.Values{"month": {"MAR/24"}},
			status: http.StatusConflict,
		},
		{
			name:   "missing installation",
			steps:  []url.Values{{"account": {"Z"}}},
			path:   "/api/library/download",
			form:   url.Values{"month": {"MAR/24"}},
			status: http.StatusUnprocessableEntity,
		},
		{
			name:   "upstream failure",
			steps:  []url.Values{{"account": {"X"}}},
			path:   "/api/library/download",
			form:   url.Values{"month": {"JAN/24"}},
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &client{t: t, srv: srv}
			for _, step := range tt.steps {
				if rr := c.postForm("/api/library/account", step); rr.Code != http.StatusOK {
					t.Fatalf("setup status=%d", rr.Code)
				}
			}
			rr := c.postForm(tt.path, tt.form)
			if rr.Code != tt.status {
				t.Fatalf("status=%d want %d body=%s", rr.Code, tt.status, rr.Body.String())
			}
			if rr.Header().Get("Content-Disposition") != "" {
				t.Errorf("error response carries an attachment")
			}
		})
	}
}

func TestDownloadWithoutDocuments(t *testing.T) {
	srv := newTestServer(t, Options{})
	mustLoad(t, srv)
	c := &client{t: t, srv: srv}

	c.postForm("/api/library/account", url.Values{"account": {"X"}})
	rr := c.postForm("/api/library/download", url.Values{"month": {"JAN/24"}})
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestReloadKeepsPreviousSnapshot(t *testing.T) {
	src := &flakySource{records: fixtureRecords()}
	srv := newTestServer(t, Options{Store: records.NewStore(src, nil)})
	c := &client{t: t, srv: srv}

	rr := c.postForm("/api/reload", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("first reload status=%d", rr.Code)
	}
	if !strings.Contains(rr.Header().Get("HX-Trigger"), "dashboard:refresh") {
		t.Errorf("missing refresh trigger")
	}

	rr = c.postForm("/api/reload", nil)
	if rr.Code != http.StatusBadGateway {
		t.Fatalf("failing reload status=%d", rr.Code)
	}

	var accounts struct {
		Accounts []string `json:"accounts"`
	}
	decodeJSON(t, c.get("/api/accounts"), &accounts)
	if len(accounts.Accounts) != 3 {
		t.Fatalf("previous snapshot lost: %+v", accounts)
	}
	if rr := c.get("/readyz"); rr.Code != http.StatusOK {
		t.Fatalf("readyz after failed reload status=%d", rr.Code)
	}
}

func TestPOSTRateLimit(t *testing.T) {
	srv := newTestServer(t, Options{RateLimit: 2})
	mustLoad(t, srv)
	c := &client{t: t, srv: srv}

	for i := 0; i < 2; i++ {
		if rr := c.postForm("/api/library/account", url.Values{"account": {"X"}}); rr.Code != http.StatusOK {
			t.Fatalf("request %d status=%d", i, rr.Code)
		}
	}
	rr := c.postForm("/api/library/account", url.Values{"account": {"X"}})
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	// GETs are not limited.
	if rr := c.get("/api/accounts"); rr.Code != http.StatusOK {
		t.Fatalf("GET status=%d", rr.Code)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, Options{})
	c := &client{t: t, srv: srv}

	rr := c.get("/api/reload")
	if rr.Code != http.StatusMethodNotAllowed || rr.Header().Get("Allow") != http.MethodPost {
		t.Fatalf("status=%d allow=%q", rr.Code, rr.Header().Get("Allow"))
	}
	rr = c.postForm("/api/dashboard", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status=%d", rr.Code)
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, Options{CORSAllowedOrigins: []string{"http://app.example"}})
	req := httptest.NewRequest(http.MethodGet, "/api/accounts", nil)
	req.Header.Set("Origin", "http://app.example")
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	if got := rr.Header().Get("Access-Control-Allow-Origin"); got != "http://app.example" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{&core.FetchError{Op: "load", StatusCode: 404}, http.StatusBadGateway},
		{&core.InvalidStateTransitionError{Op: "resolve"}, http.StatusConflict},
		{&core.UnresolvableSelectionError{AccountID: "Z", Err: core.ErrMissingInstallation}, http.StatusUnprocessableEntity},
		{dashboard.ErrUnknownAccount, http.StatusBadRequest},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}
