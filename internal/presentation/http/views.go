package http

import (
	"context"
	stdhttp "net/http"
	"net/url"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"shareme/app/internal/domain/pages"
	"shareme/app/internal/presentation/http/templates"
)

const (
	homeRecentLimit    = 20
	dashboardPostLimit = pages.MaxListLimit
	descriptionLength  = 160
	createdDateLayout  = "January 2, 2006"
)

type viewSlugInput struct {
	Slug string `path:"slug" maxLength:"200"`
}

type loginInput struct {
	Token string `path:"token" maxLength:"128"`
}

func (s *Server) registerViewRoutes() {
	huma.Get(s.api, "/", s.homeHandler, htmlOperation("ShareMe home", stdhttp.StatusInternalServerError))

	huma.Get(s.api, "/new", s.newPageHandler, htmlOperation("Open the editor for a new page"))

	huma.Get(s.api, "/edit/{slug}", s.editPageHandler, htmlOperation(
		"Open the editor for an existing page",
		stdhttp.StatusForbidden,
		stdhttp.StatusNotFound,
		stdhttp.StatusServiceUnavailable,
	))

	huma.Get(s.api, "/auth/{token}", s.loginHandler, htmlOperation(
		"Sign in with a bot login link",
		stdhttp.StatusFound,
		stdhttp.StatusBadRequest,
		stdhttp.StatusNotFound,
	))

	huma.Get(s.api, "/logout", s.logoutHandler, htmlOperation("Sign out", stdhttp.StatusFound))

	huma.Get(s.api, "/dashboard", s.dashboardHandler, htmlOperation(
		"List the signed-in user's pages",
		stdhttp.StatusFound,
		stdhttp.StatusServiceUnavailable,
	))

	huma.Get(s.api, "/{slug}", s.pageViewHandler, htmlOperation(
		"Read a published page",
		stdhttp.StatusNotFound,
		stdhttp.StatusServiceUnavailable,
	))
}

func (s *Server) homeHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	recent, err := s.pages.ListRecent(ctx, homeRecentLimit)
	if err != nil {
		return s.htmlFailure(ctx, err, "listing recent pages", nil), nil
	}

	layout := s.layout(ctx, "Share a page", "/")
	layout.Description = "Write a page, publish it under a short link and edit it later."

	return s.renderPage(ctx, stdhttp.StatusOK, templates.HomePage(templates.HomePageData{
		Layout: layout,
		Recent: s.summaryViews(recent),
	}), "home page"), nil
}

func (s *Server) newPageHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	layout := s.layout(ctx, "New page", "")
	data := templates.EditorPageData{Layout: layout}
	if session, ok := SessionFromContext(ctx); ok {
		data.Author = session.Name
	}
	return s.renderPage(ctx, stdhttp.StatusOK, templates.EditorPage(data), "editor"), nil
}

// editPageHandler prefills the editor for the signed-in owner. Anonymous authors get an
// empty editor that loads the page with the edit token kept in the browser.
func (s *Server) editPageHandler(ctx context.Context, input *viewSlugInput) (*htmlResponse, error) {
	data := templates.EditorPageData{
		Layout: s.layout(ctx, "Edit page", ""),
		Slug:   input.Slug,
	}

	owner := ownerFromContext(ctx)
	if owner.IsZero() {
		return s.renderPage(ctx, stdhttp.StatusOK, templates.EditorPage(data), "editor"), nil
	}

	page, err := s.pages.OpenForEdit(ctx, input.Slug, pages.EditToken{}, owner)
	switch {
	case err == nil:
		data.Title = page.Title
		data.Author = page.Author
		data.Content = page.Content
	case isForbidden(err):
		// Owned by someone else or anonymous; the browser may still hold the token.
	default:
		return s.htmlFailure(ctx, err, "opening page for edit", logrus.Fields{"slug": input.Slug}), nil
	}

	return s.renderPage(ctx, stdhttp.StatusOK, templates.EditorPage(data), "editor"), nil
}

func (s *Server) pageViewHandler(ctx context.Context, input *viewSlugInput) (*htmlResponse, error) {
	page, err := s.pages.View(ctx, input.Slug)
	if err != nil {
		return s.htmlFailure(ctx, err, "loading page", logrus.Fields{"slug": input.Slug}), nil
	}

	layout := s.layout(ctx, page.Title, "/"+url.PathEscape(page.Slug))
	layout.Description = pages.Excerpt(page.Content, descriptionLength)

	owner := ownerFromContext(ctx)
	canEdit := pages.CanMutate(page, pages.EditToken{}, owner)

	return s.renderPage(ctx, stdhttp.StatusOK, templates.PageView(templates.PageViewData{
		Layout:   layout,
		Slug:     page.Slug,
		Title:    page.Title,
		Author:   page.Author,
		HTML:     page.Content,
		Views:    page.Views,
		Created:  formatCreated(page.CreatedAt),
		CanEdit:  canEdit,
		EditPath: "/edit/" + url.PathEscape(page.Slug),
	}), "page view"), nil
}

func (s *Server) loginHandler(ctx context.Context, input *loginInput) (*htmlResponse, error) {
	user, err := s.accounts.Login(ctx, input.Token)
	if err != nil {
		return s.htmlFailure(ctx, err, "redeeming login link", nil), nil
	}

	cookie, err := s.sessions.Issue(Session{UserID: user.ID, Name: user.Name})
	if err != nil {
		s.recordError(ctx, err, "issuing session", logrus.Fields{"user_id": user.ID})
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, errorFallbackMessage), nil
	}

	return redirectResponse("/dashboard", cookie), nil
}

func (s *Server) logoutHandler(_ context.Context, _ *struct{}) (*htmlResponse, error) {
	return redirectResponse("/", s.sessions.Clear()), nil
}

func (s *Server) dashboardHandler(ctx context.Context, _ *struct{}) (*htmlResponse, error) {
	session, ok := SessionFromContext(ctx)
	if !ok {
		return redirectResponse("/", nil), nil
	}

	posts, err := s.accounts.Posts(ctx, session.UserID, dashboardPostLimit)
	if err != nil {
		return s.htmlFailure(ctx, err, "listing dashboard pages", logrus.Fields{"user_id": session.UserID}), nil
	}

	name := session.Name
	if user, err := s.accounts.User(ctx, session.UserID); err == nil {
		name = user.Name
	}

	return s.renderPage(ctx, stdhttp.StatusOK, templates.DashboardPage(templates.DashboardPageData{
		Layout: s.layout(ctx, "Dashboard", ""),
		Name:   name,
		Posts:  s.summaryViews(posts),
	}), "dashboard"), nil
}

func (s *Server) summaryViews(summaries []pages.Summary) []templates.PageSummaryView {
	views := make([]templates.PageSummaryView, 0, len(summaries))
	for _, summary := range summaries {
		title := strings.TrimSpace(summary.Title)
		if title == "" {
			title = summary.Slug
		}
		views = append(views, templates.PageSummaryView{
			Title:   title,
			URL:     "/" + url.PathEscape(summary.Slug),
			Author:  summary.Author,
			Views:   summary.Views,
			Created: formatCreated(summary.CreatedAt),
		})
	}
	return views
}

func formatCreated(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(createdDateLayout)
}

func isForbidden(err error) bool {
	return classifyError(err).status == stdhttp.StatusForbidden
}
