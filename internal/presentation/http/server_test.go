package http

import (
	"context"
	"encoding/json"
	"io"
	stdhttp "net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"shareme/app/internal/domain/accounts"
	"shareme/app/internal/domain/pages"
)

const testBotSecret = "bot-secret"

func TestHomeRouteListsRecentPages(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "hello", Title: "Hello <World>", Content: "<p>hi</p>", Views: 3})
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	rec := serve(srv, httptest.NewRequest("GET", "/", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != htmlContentType {
		t.Fatalf("expected content type %q, got %q", htmlContentType, ct)
	}

	body := rec.Body.String()
	if !contains(body, `href="/hello"`) || !contains(body, "Hello &lt;World&gt;") {
		t.Fatalf("expected escaped recent page link in body, got %q", body)
	}
	if !contains(body, "3 views") {
		t.Fatalf("expected view count in body, got %q", body)
	}
	if pageService.lastRecentLimit != homeRecentLimit {
		t.Fatalf("expected recent limit %d, got %d", homeRecentLimit, pageService.lastRecentLimit)
	}
}

func TestPageViewRendersContentAndCountsView(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "hello-world", Title: "Hello", Author: "Ann", Content: "<p>Hi <strong>there</strong></p>"})
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	rec := serve(srv, httptest.NewRequest("GET", "/hello-world", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !contains(body, "<p>Hi <strong>there</strong></p>") {
		t.Fatalf("expected page HTML in body, got %q", body)
	}
	if !contains(body, "1 view") {
		t.Fatalf("expected first view counted, got %q", body)
	}
	if !contains(body, `<link rel="canonical" href="https://share.example/hello-world">`) {
		t.Fatalf("expected canonical link, got %q", body)
	}
	if contains(body, "/edit/hello-world") {
		t.Fatalf("expected no edit link for anonymous visitor, got %q", body)
	}

	second := serve(srv, httptest.NewRequest("GET", "/hello-world", nil))
	if !contains(second.Body.String(), "2 views") {
		t.Fatalf("expected second view counted, got %q", second.Body.String())
	}
}

func TestPageViewShowsEditLinkForOwner(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "mine", Title: "Mine", Content: "<p>x</p>", OwnerID: "42"})
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	req := httptest.NewRequest("GET", "/mine", nil)
	req.AddCookie(sessionCookie(t, srv, "42", "Ann Lee"))
	rec := serve(srv, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	body := rec.Body.String()
	if !contains(body, `href="/edit/mine"`) {
		t.Fatalf("expected edit link for owner, got %q", body)
	}
	if !contains(body, `href="/dashboard">Ann Lee</a>`) {
		t.Fatalf("expected signed-in navigation, got %q", body)
	}
}

func TestPageViewMapsErrorsToStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		status   int
		contains string
	}{
		{"missing", nil, stdhttp.StatusNotFound, "We couldn&#39;t find that page."},
		{"store down", eris.Wrap(pages.ErrStoreUnavailable, "get"), stdhttp.StatusServiceUnavailable, "Storage is temporarily unavailable."},
		{"unexpected", eris.New("boom"), stdhttp.StatusInternalServerError, "We couldn&#39;t process your request right now."},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			pageService := newStubPages()
			pageService.viewErr = tc.err
			srv := newTestServer(t, pageService, newStubAccounts(pageService))

			rec := serve(srv, httptest.NewRequest("GET", "/nothing-here", nil))

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != htmlContentType {
				t.Fatalf("expected content type %q, got %q", htmlContentType, ct)
			}
			if !contains(rec.Body.String(), tc.contains) {
				t.Fatalf("expected %q in body, got %q", tc.contains, rec.Body.String())
			}
		})
	}
}

func TestPublishCreatesPageAndReturnsToken(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	rec := serve(srv, jsonRequest("POST", "/publish", `{"title":"Hello","content":"<p>x</p>","author":"Ann"}`))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeJSON(t, rec)
	if body["ok"] != true {
		t.Fatalf("expected ok=true, got %#v", body)
	}
	slug, _ := body["slug"].(string)
	token, _ := body["token"].(string)
	if slug == "" || token == "" {
		t.Fatalf("expected slug and token, got %#v", body)
	}

	if pageService.lastPublish.Title != "Hello" || pageService.lastPublish.Author != "Ann" {
		t.Fatalf("unexpected publish input %#v", pageService.lastPublish)
	}
	if !pageService.lastPublish.Owner.IsZero() {
		t.Fatalf("expected anonymous publish, got owner %q", pageService.lastPublish.Owner)
	}
}

func TestPublishAttachesSessionOwner(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	req := jsonRequest("POST", "/publish", `{"title":"Hello","content":"<p>x</p>"}`)
	req.AddCookie(sessionCookie(t, srv, "42", "Ann"))
	rec := serve(srv, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if pageService.lastPublish.Owner != "42" {
		t.Fatalf("expected owner 42, got %q", pageService.lastPublish.Owner)
	}
}

func TestPublishMapsDomainErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name   string
		err    error
		status int
		code   string
		field  string
		reason string
	}{
		{"validation", &pages.ValidationError{Field: "title", Reason: pages.ReasonRequired}, stdhttp.StatusBadRequest, "invalid_input", "title", pages.ReasonRequired},
		{"conflict", eris.Wrap(pages.ErrAlreadyExists, "create"), stdhttp.StatusConflict, "conflict", "slug", pages.ReasonTaken},
		{"forbidden", eris.Wrap(pages.ErrForbidden, "edit"), stdhttp.StatusForbidden, "forbidden", "", ""},
		{"missing", eris.Wrap(pages.ErrNotFound, "edit"), stdhttp.StatusNotFound, "not_found", "", ""},
		{"unavailable", eris.Wrap(pages.ErrStoreUnavailable, "create"), stdhttp.StatusServiceUnavailable, "unavailable", "", ""},
		{"unexpected", eris.New("boom"), stdhttp.StatusInternalServerError, "internal_error", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			pageService := newStubPages()
			pageService.publishErr = tc.err
			srv := newTestServer(t, pageService, newStubAccounts(pageService))

			rec := serve(srv, jsonRequest("POST", "/publish", `{"title":"","content":"x"}`))

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d: %s", tc.status, rec.Code, rec.Body.String())
			}

			body := decodeJSON(t, rec)
			if body["ok"] != false || body["error"] != tc.code {
				t.Fatalf("expected error code %q, got %#v", tc.code, body)
			}
			if field, _ := body["field"].(string); field != tc.field {
				t.Fatalf("expected field %q, got %#v", tc.field, body)
			}
			if reason, _ := body["reason"].(string); reason != tc.reason {
				t.Fatalf("expected reason %q, got %#v", tc.reason, body)
			}
		})
	}
}

func TestCheckSlugReportsAvailability(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.availability = pages.Availability{Available: false, Reason: pages.ReasonTaken, NormalizedSlug: "my-post"}
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	rec := serve(srv, jsonRequest("POST", "/check-slug", `{"slug":"My Post"}`))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeJSON(t, rec)
	if body["available"] != false || body["reason"] != "taken" || body["normalizedSlug"] != "my-post" {
		t.Fatalf("unexpected availability %#v", body)
	}
	if pageService.lastCandidate != "My Post" {
		t.Fatalf("expected raw candidate passed through, got %q", pageService.lastCandidate)
	}
}

func TestGetPageAPIOmitsEditToken(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "alpha", Title: "Alpha", Content: "<p>a</p>", EditToken: pages.ParseEditToken("secret-token")})
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	rec := serve(srv, httptest.NewRequest("GET", "/api/pages/alpha", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if contains(rec.Body.String(), "secret-token") {
		t.Fatalf("expected edit token to stay private, got %q", rec.Body.String())
	}

	body := decodeJSON(t, rec)
	if body["url"] != "https://share.example/alpha" || body["views"] != float64(1) {
		t.Fatalf("unexpected page body %#v", body)
	}
}

func TestOpenForEditRequiresTokenOrOwner(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "alpha", Title: "Alpha", Content: "a", EditToken: pages.ParseEditToken("right")})
	pageService.put(&pages.Page{Slug: "owned", Title: "Owned", Content: "o", EditToken: pages.ParseEditToken("other"), OwnerID: "42"})
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	noToken := serve(srv, httptest.NewRequest("GET", "/api/pages/alpha/edit", nil))
	if noToken.Code != stdhttp.StatusForbidden {
		t.Fatalf("expected 403 without token, got %d", noToken.Code)
	}

	wrong := httptest.NewRequest("GET", "/api/pages/alpha/edit", nil)
	wrong.Header.Set("X-Edit-Token", "wrong")
	if rec := serve(srv, wrong); rec.Code != stdhttp.StatusForbidden {
		t.Fatalf("expected 403 with wrong token, got %d", rec.Code)
	}

	right := httptest.NewRequest("GET", "/api/pages/alpha/edit", nil)
	right.Header.Set("X-Edit-Token", "right")
	rec := serve(srv, right)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["editToken"] != "right" {
		t.Fatalf("expected edit token echoed to authorized editor, got %#v", body)
	}

	owner := httptest.NewRequest("GET", "/api/pages/owned/edit", nil)
	owner.AddCookie(sessionCookie(t, srv, "42", "Ann"))
	if rec := serve(srv, owner); rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected owner to open page without token, got %d", rec.Code)
	}
}

func TestDeletePageRemovesIt(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "gone", Title: "Gone", Content: "g", EditToken: pages.ParseEditToken("tok")})
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	req := httptest.NewRequest("DELETE", "/api/pages/gone", nil)
	req.Header.Set("X-Edit-Token", "tok")
	rec := serve(srv, req)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeJSON(t, rec); body["ok"] != true {
		t.Fatalf("expected ok=true, got %#v", body)
	}

	after := serve(srv, httptest.NewRequest("GET", "/api/pages/gone", nil))
	if after.Code != stdhttp.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %d", after.Code)
	}
}

func TestListMyPagesRequiresSession(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "mine", Title: "Mine", OwnerID: "42"})
	pageService.put(&pages.Page{Slug: "theirs", Title: "Theirs", OwnerID: "7"})
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	anonymous := serve(srv, httptest.NewRequest("GET", "/api/me/pages", nil))
	if anonymous.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("expected 401 without session, got %d", anonymous.Code)
	}

	req := httptest.NewRequest("GET", "/api/me/pages", nil)
	req.AddCookie(sessionCookie(t, srv, "42", "Ann"))
	rec := serve(srv, req)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var body struct {
		Pages []summaryBody `json:"pages"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Pages) != 1 || body.Pages[0].Slug != "mine" {
		t.Fatalf("expected only the owner's page, got %#v", body.Pages)
	}
}

func TestLoginLinkStartsSession(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "mine", Title: "My first page", OwnerID: "42"})
	accountService := newStubAccounts(pageService)
	accountService.users["42"] = accounts.User{ID: "42", Name: "Ann Lee"}
	accountService.tokens["abc123"] = "42"
	srv := newTestServer(t, pageService, accountService)

	rec := serve(srv, httptest.NewRequest("GET", "/auth/abc123", nil))

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected 302, got %d: %s", rec.Code, rec.Body.String())
	}
	if location := rec.Header().Get("Location"); location != "/dashboard" {
		t.Fatalf("expected redirect to /dashboard, got %q", location)
	}

	var session *stdhttp.Cookie
	for _, cookie := range rec.Result().Cookies() {
		if cookie.Name == sessionCookieName {
			session = cookie
		}
	}
	if session == nil || session.Value == "" {
		t.Fatalf("expected session cookie, got %v", rec.Result().Cookies())
	}
	if !session.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie")
	}

	dashboard := httptest.NewRequest("GET", "/dashboard", nil)
	dashboard.AddCookie(session)
	page := serve(srv, dashboard)
	if page.Code != stdhttp.StatusOK {
		t.Fatalf("expected dashboard 200, got %d", page.Code)
	}
	if body := page.Body.String(); !contains(body, "Hello, Ann Lee") || !contains(body, "My first page") {
		t.Fatalf("expected greeting and posts on dashboard, got %q", body)
	}
}

func TestLoginLinkRejectsInvalidToken(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	rec := serve(srv, httptest.NewRequest("GET", "/auth/expired", nil))

	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if !contains(rec.Body.String(), "Invalid or expired login link") {
		t.Fatalf("expected login error message, got %q", rec.Body.String())
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Fatalf("expected no cookie on failed login")
	}
}

func TestDashboardRedirectsWithoutSession(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	rec := serve(srv, httptest.NewRequest("GET", "/dashboard", nil))

	if rec.Code != stdhttp.StatusFound || rec.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", rec.Code, rec.Header().Get("Location"))
	}
}

func TestLogoutClearsSessionCookie(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	req := httptest.NewRequest("GET", "/logout", nil)
	req.AddCookie(sessionCookie(t, srv, "42", "Ann"))
	rec := serve(srv, req)

	if rec.Code != stdhttp.StatusFound {
		t.Fatalf("expected 302, got %d", rec.Code)
	}
	cookies := rec.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Name != sessionCookieName || cookies[0].MaxAge >= 0 {
		t.Fatalf("expected expiring session cookie, got %v", cookies)
	}
}

func TestEditorRoutes(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "mine", Title: "Owned title", Content: "<p>body</p>", OwnerID: "42"})
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	blank := serve(srv, httptest.NewRequest("GET", "/new", nil))
	if blank.Code != stdhttp.StatusOK || !contains(blank.Body.String(), `name="customSlug"`) {
		t.Fatalf("expected new-page editor with custom slug input, got %d %q", blank.Code, blank.Body.String())
	}

	anonymous := serve(srv, httptest.NewRequest("GET", "/edit/mine", nil))
	if anonymous.Code != stdhttp.StatusOK {
		t.Fatalf("expected editor for anonymous visitor, got %d", anonymous.Code)
	}
	if body := anonymous.Body.String(); contains(body, "Owned title") || !contains(body, `data-slug="mine"`) {
		t.Fatalf("expected empty editor bound to slug, got %q", body)
	}

	req := httptest.NewRequest("GET", "/edit/mine", nil)
	req.AddCookie(sessionCookie(t, srv, "42", "Ann"))
	owner := serve(srv, req)
	if body := owner.Body.String(); !contains(body, `value="Owned title"`) || !contains(body, "&lt;p&gt;body&lt;/p&gt;") {
		t.Fatalf("expected prefilled editor for owner, got %q", body)
	}
}

func TestBotRoutesRequireSecret(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	cases := []struct {
		name   string
		secret string
		status int
	}{
		{"missing", "", stdhttp.StatusUnauthorized},
		{"wrong", "nope", stdhttp.StatusUnauthorized},
		{"valid", testBotSecret, stdhttp.StatusOK},
	}

	for _, tc := range cases {
		req := httptest.NewRequest("GET", "/bot/search?q=go", nil)
		if tc.secret != "" {
			req.Header.Set("X-Bot-Secret", tc.secret)
		}
		rec := serve(srv, req)
		if rec.Code != tc.status {
			t.Fatalf("%s: expected status %d, got %d", tc.name, tc.status, rec.Code)
		}
	}
}

func TestBotRoutesHiddenWithoutSecret(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService), func(opts *Options) {
		opts.BotSecret = ""
	})

	req := httptest.NewRequest("GET", "/bot/search?q=go", nil)
	req.Header.Set("X-Bot-Secret", "anything")
	if rec := serve(srv, req); rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("expected 404 without configured secret, got %d", rec.Code)
	}
}

func TestBotStartReturnsLoginLink(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "a", Title: "A", OwnerID: "42"})
	accountService := newStubAccounts(pageService)
	srv := newTestServer(t, pageService, accountService)

	req := jsonRequest("POST", "/bot/start", `{"telegramId":"42","firstName":"Ann","lastName":"Lee"}`)
	req.Header.Set("X-Bot-Secret", testBotSecret)
	rec := serve(srv, req)

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	body := decodeJSON(t, rec)
	if body["name"] != "Ann Lee" || body["postCount"] != float64(1) {
		t.Fatalf("unexpected start response %#v", body)
	}
	if loginURL, _ := body["loginUrl"].(string); !strings.HasPrefix(loginURL, "https://share.example/auth/") {
		t.Fatalf("expected login url, got %#v", body["loginUrl"])
	}
}

func TestBotSearchAndPosts(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.searchResults = []pages.Summary{{Slug: "go-tips", Title: "Go tips"}}
	pageService.put(&pages.Page{Slug: "mine", Title: "Mine", OwnerID: "42"})
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	search := httptest.NewRequest("GET", "/bot/search?q=go", nil)
	search.Header.Set("X-Bot-Secret", testBotSecret)
	rec := serve(srv, search)
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if pageService.lastSearch != "go" || pageService.lastSearchLimit != botSearchDefaultLimit {
		t.Fatalf("expected search for %q with limit %d, got %q and %d", "go", botSearchDefaultLimit, pageService.lastSearch, pageService.lastSearchLimit)
	}
	if !contains(rec.Body.String(), "https://share.example/go-tips") {
		t.Fatalf("expected result url, got %q", rec.Body.String())
	}

	posts := httptest.NewRequest("GET", "/bot/users/42/posts", nil)
	posts.Header.Set("X-Bot-Secret", testBotSecret)
	rec = serve(srv, posts)
	if rec.Code != stdhttp.StatusOK || !contains(rec.Body.String(), `"slug":"mine"`) {
		t.Fatalf("expected the user's posts, got %d %q", rec.Code, rec.Body.String())
	}
}

func TestSitemapListsPublishedPages(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	pageService.put(&pages.Page{Slug: "alpha", Title: "Alpha", CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)})
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	rec := serve(srv, httptest.NewRequest("GET", "/sitemap.xml", nil))

	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != xmlContentType {
		t.Fatalf("expected content type %q, got %q", xmlContentType, ct)
	}

	body := rec.Body.String()
	for _, want := range []string{
		"<urlset xmlns=\"http://www.sitemaps.org/schemas/sitemap/0.9\">",
		"<loc>https://share.example/</loc>",
		"<loc>https://share.example/new</loc>",
		"<loc>https://share.example/alpha</loc>",
		"<lastmod>2024-03-01</lastmod>",
	} {
		if !contains(body, want) {
			t.Fatalf("expected %q in sitemap, got %q", want, body)
		}
	}
	if pageService.lastRecentLimit != sitemapPageLimit {
		t.Fatalf("expected sitemap to request %d pages, got %d", sitemapPageLimit, pageService.lastRecentLimit)
	}
}

func TestRobotsAndSitemapIndex(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	robots := serve(srv, httptest.NewRequest("GET", "/robots.txt", nil))
	if robots.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", robots.Code)
	}
	body := robots.Body.String()
	if !contains(body, "Disallow: /edit/") || !contains(body, "Sitemap: https://share.example/sitemap.xml") {
		t.Fatalf("unexpected robots.txt %q", body)
	}

	index := serve(srv, httptest.NewRequest("GET", "/sitemap-index.xml", nil))
	if index.Code != stdhttp.StatusOK || !contains(index.Body.String(), "<sitemapindex") {
		t.Fatalf("unexpected sitemap index %d %q", index.Code, index.Body.String())
	}
}

func TestHealthRouteReportsStoreState(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	rec := serve(srv, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["status"] != "ok" || body["store"] != "ok" {
		t.Fatalf("unexpected health body %#v", body)
	}

	pageService.setHealthErr(eris.Wrap(pages.ErrStoreUnavailable, "ping"))
	rec = serve(srv, httptest.NewRequest("GET", "/healthz", nil))
	if rec.Code != stdhttp.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if body := decodeJSON(t, rec); body["store"] != "unavailable" {
		t.Fatalf("unexpected health body %#v", body)
	}
}

func TestRateLimiterMiddlewareCapsRequests(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService), func(opts *Options) {
		opts.RateLimiter = RateLimiterSettings{Burst: 3, RequestsPerSecond: 3, ClientTTL: time.Minute}
	})

	current := time.Unix(0, 0)
	srv.rateLimiter.now = func() time.Time {
		return current
	}

	for i := 0; i < 3; i++ {
		rec := serve(srv, httptest.NewRequest("GET", "/", nil))
		if rec.Code != stdhttp.StatusOK {
			t.Fatalf("expected request %d to be allowed, got status %d", i+1, rec.Code)
		}
	}

	fourth := serve(srv, httptest.NewRequest("GET", "/", nil))
	if fourth.Code != stdhttp.StatusTooManyRequests {
		t.Fatalf("expected status %d, got %d", stdhttp.StatusTooManyRequests, fourth.Code)
	}
	if header := fourth.Header().Get("Retry-After"); header != "1" {
		t.Fatalf("expected Retry-After header to be 1, got %q", header)
	}
	if body := fourth.Body.String(); !contains(body, "Too Many Requests") || !contains(body, "Please wait a moment") {
		t.Fatalf("expected rate limit message in body, got %q", body)
	}

	api := serve(srv, httptest.NewRequest("GET", "/api/pages", nil))
	if api.Code != stdhttp.StatusTooManyRequests || !contains(api.Body.String(), `"error":"rate_limited"`) {
		t.Fatalf("expected JSON rate limit body, got %d %q", api.Code, api.Body.String())
	}

	current = current.Add(time.Second)

	after := serve(srv, httptest.NewRequest("GET", "/", nil))
	if after.Code != stdhttp.StatusOK {
		t.Fatalf("expected status %d after refill, got %d", stdhttp.StatusOK, after.Code)
	}
}

func TestRequestIDIsEchoedOrGenerated(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	incoming := uuid.NewString()
	req := httptest.NewRequest("GET", "/healthz", nil)
	req.Header.Set("X-Request-ID", incoming)
	if rec := serve(srv, req); rec.Header().Get("X-Request-ID") != incoming {
		t.Fatalf("expected request id %q echoed, got %q", incoming, rec.Header().Get("X-Request-ID"))
	}

	bogus := httptest.NewRequest("GET", "/healthz", nil)
	bogus.Header.Set("X-Request-ID", "not-a-uuid")
	rec := serve(srv, bogus)
	if _, err := uuid.Parse(rec.Header().Get("X-Request-ID")); err != nil {
		t.Fatalf("expected generated uuid request id, got %q", rec.Header().Get("X-Request-ID"))
	}
}

func TestStaticAssetsAreServed(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	srv := newTestServer(t, pageService, newStubAccounts(pageService))

	for _, path := range []string{"/static/editor.js", "/static/app.css", "/favicon.ico"} {
		rec := serve(srv, httptest.NewRequest("GET", path, nil))
		if rec.Code != stdhttp.StatusOK {
			t.Fatalf("%s: expected 200, got %d", path, rec.Code)
		}
	}
}

func TestNewServerValidatesOptions(t *testing.T) {
	t.Parallel()

	pageService := newStubPages()
	sessions, err := NewSessionManager("secret", time.Hour, true)
	if err != nil {
		t.Fatalf("NewSessionManager returned error: %v", err)
	}
	valid := Options{
		Pages:       pageService,
		Accounts:    newStubAccounts(pageService),
		Sessions:    sessions,
		BaseURL:     "https://share.example",
		RateLimiter: RateLimiterSettings{Burst: 1, RequestsPerSecond: 1, ClientTTL: time.Minute},
	}

	mutations := []func(*Options){
		func(o *Options) { o.Pages = nil },
		func(o *Options) { o.Accounts = nil },
		func(o *Options) { o.Sessions = nil },
		func(o *Options) { o.BaseURL = "" },
		func(o *Options) { o.RateLimiter.Burst = 0 },
		func(o *Options) { o.RateLimiter.RequestsPerSecond = 0 },
		func(o *Options) { o.RateLimiter.ClientTTL = 0 },
	}

	for idx, mutate := range mutations {
		opts := valid
		mutate(&opts)
		if srv, err := NewServer(opts); err == nil {
			srv.Close()
			t.Fatalf("case %d: expected error", idx)
		}
	}
}

// helper utilities

func newTestServer(t *testing.T, pageService pages.Service, accountService accounts.Service, mutators ...func(*Options)) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	sessions, err := NewSessionManager("test-session-secret", time.Hour, true)
	if err != nil {
		t.Fatalf("NewSessionManager returned error: %v", err)
	}

	opts := Options{
		Pages:     pageService,
		Accounts:  accountService,
		Sessions:  sessions,
		BaseURL:   "https://share.example/",
		BotSecret: testBotSecret,
		Logger:    logger,
		RateLimiter: RateLimiterSettings{
			Burst:             100,
			RequestsPerSecond: 100,
			ClientTTL:         time.Minute,
		},
	}
	for _, mutate := range mutators {
		mutate(&opts)
	}

	srv, err := NewServer(opts)
	if err != nil {
		t.Fatalf("NewServer returned error: %v", err)
	}
	t.Cleanup(srv.Close)

	return srv
}

func serve(srv *Server, req *stdhttp.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(method, path, body string) *stdhttp.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()

	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding JSON body %q: %v", rec.Body.String(), err)
	}
	return body
}

func sessionCookie(t *testing.T, srv *Server, userID, name string) *stdhttp.Cookie {
	t.Helper()

	cookie, err := srv.sessions.Issue(Session{UserID: userID, Name: name})
	if err != nil {
		t.Fatalf("Issue returned error: %v", err)
	}
	return cookie
}

func contains(body, substring string) bool {
	return strings.Contains(body, substring)
}

// stubs

type stubPages struct {
	mu    sync.Mutex
	pages map[string]*pages.Page
	seq   int

	availability  pages.Availability
	searchResults []pages.Summary

	lastCandidate   string
	lastPublish     pages.PublishInput
	lastRecentLimit int
	lastSearch      string
	lastSearchLimit int

	publishErr error
	viewErr    error
	healthErr  error
}

func newStubPages() *stubPages {
	return &stubPages{pages: make(map[string]*pages.Page)}
}

func (s *stubPages) put(page *pages.Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	if page.CreatedAt.IsZero() {
		page.CreatedAt = time.Date(2024, 1, 1, 0, 0, s.seq, 0, time.UTC)
	}
	s.pages[page.Slug] = page
}

func (s *stubPages) setHealthErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.healthErr = err
}

func (s *stubPages) CheckSlug(_ context.Context, candidate string) (pages.Availability, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastCandidate = candidate
	return s.availability, nil
}

func (s *stubPages) Publish(_ context.Context, input pages.PublishInput) (*pages.PublishResult, error) {
	s.mu.Lock()
	s.lastPublish = input
	err := s.publishErr
	s.mu.Unlock()

	if err != nil {
		return nil, err
	}

	token := pages.NewEditToken()
	slug := "page-" + strings.ToLower(uuid.NewString()[:8])
	s.put(&pages.Page{Slug: slug, Title: input.Title, Content: input.Content, Author: input.Author, EditToken: token, OwnerID: input.Owner})
	return &pages.PublishResult{Slug: slug, EditToken: token, Created: true}, nil
}

func (s *stubPages) View(_ context.Context, slug string) (*pages.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.viewErr != nil {
		return nil, s.viewErr
	}
	page, ok := s.pages[slug]
	if !ok {
		return nil, eris.Wrapf(pages.ErrNotFound, "page %s", slug)
	}
	page.Views++
	copied := *page
	return &copied, nil
}

func (s *stubPages) OpenForEdit(_ context.Context, slug string, token pages.EditToken, owner pages.OwnerID) (*pages.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	page, err := s.authorize(slug, token, owner)
	if err != nil {
		return nil, err
	}
	copied := *page
	return &copied, nil
}

func (s *stubPages) Delete(_ context.Context, slug string, token pages.EditToken, owner pages.OwnerID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.authorize(slug, token, owner); err != nil {
		return err
	}
	delete(s.pages, slug)
	return nil
}

func (s *stubPages) authorize(slug string, token pages.EditToken, owner pages.OwnerID) (*pages.Page, error) {
	page, ok := s.pages[slug]
	if !ok {
		return nil, eris.Wrapf(pages.ErrNotFound, "page %s", slug)
	}
	if !pages.CanMutate(page, token, owner) {
		return nil, eris.Wrapf(pages.ErrForbidden, "page %s", slug)
	}
	return page, nil
}

func (s *stubPages) ListRecent(_ context.Context, limit int) ([]pages.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastRecentLimit = limit
	return s.sorted(func(*pages.Page) bool { return true }), nil
}

func (s *stubPages) ListOwned(_ context.Context, owner pages.OwnerID, _ int) ([]pages.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.sorted(func(page *pages.Page) bool { return page.OwnerID == owner }), nil
}

func (s *stubPages) Search(_ context.Context, query string, limit int) ([]pages.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastSearch = query
	s.lastSearchLimit = limit
	return s.searchResults, nil
}

func (s *stubPages) Health(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.healthErr
}

func (s *stubPages) sorted(keep func(*pages.Page) bool) []pages.Summary {
	summaries := make([]pages.Summary, 0, len(s.pages))
	for _, page := range s.pages {
		if keep(page) {
			summaries = append(summaries, page.Summarize())
		}
	}
	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].CreatedAt.After(summaries[j].CreatedAt)
	})
	return summaries
}

var _ pages.Service = (*stubPages)(nil)

type stubAccounts struct {
	mu     sync.Mutex
	pages  *stubPages
	users  map[string]accounts.User
	tokens map[string]string
}

func newStubAccounts(pageService *stubPages) *stubAccounts {
	return &stubAccounts{
		pages:  pageService,
		users:  make(map[string]accounts.User),
		tokens: make(map[string]string),
	}
}

func (s *stubAccounts) Start(ctx context.Context, profile accounts.Profile) (*accounts.Account, error) {
	user := accounts.User{ID: profile.ID, Name: profile.FullName()}
	token := strings.ReplaceAll(uuid.NewString(), "-", "")

	s.mu.Lock()
	s.users[user.ID] = user
	s.tokens[token] = user.ID
	s.mu.Unlock()

	posts, err := s.Posts(ctx, user.ID, pages.MaxListLimit)
	if err != nil {
		return nil, err
	}
	return &accounts.Account{User: user, PostCount: len(posts), LoginURL: "https://share.example/auth/" + token}, nil
}

func (s *stubAccounts) Login(ctx context.Context, token string) (*accounts.User, error) {
	s.mu.Lock()
	userID, ok := s.tokens[token]
	s.mu.Unlock()

	if !ok {
		return nil, eris.Wrap(accounts.ErrInvalidLoginToken, "resolving login token")
	}
	return s.User(ctx, userID)
}

func (s *stubAccounts) User(_ context.Context, id string) (*accounts.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	user, ok := s.users[id]
	if !ok {
		return nil, eris.Wrapf(accounts.ErrUserNotFound, "user %s", id)
	}
	return &user, nil
}

func (s *stubAccounts) Posts(ctx context.Context, id string, limit int) ([]pages.Summary, error) {
	return s.pages.ListOwned(ctx, pages.OwnerID(id), limit)
}

var _ accounts.Service = (*stubAccounts)(nil)
