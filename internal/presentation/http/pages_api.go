package http

import (
	"context"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/sirupsen/logrus"

	"shareme/app/internal/domain/pages"
)

type checkSlugInput struct {
	Body struct {
		Slug string `json:"slug" maxLength:"200" doc:"Requested slug, normalized before checking"`
	}
}

type checkSlugOutput struct {
	Body struct {
		Available      bool   `json:"available"`
		Reason         string `json:"reason,omitempty" enum:"too_short,too_long,invalid_chars,taken,reserved"`
		NormalizedSlug string `json:"normalizedSlug"`
	}
}

type publishInput struct {
	Body struct {
		Slug       string `json:"slug,omitempty" doc:"Slug of the page to edit; omit to create a new page"`
		EditToken  string `json:"editToken,omitempty" doc:"Edit token returned when the page was created"`
		Title      string `json:"title,omitempty" maxLength:"2000"`
		Content    string `json:"content,omitempty"`
		Author     string `json:"author,omitempty" maxLength:"500"`
		CustomSlug string `json:"customSlug,omitempty" maxLength:"200"`
	}
}

type publishOutput struct {
	Body struct {
		OK    bool   `json:"ok"`
		Slug  string `json:"slug"`
		Token string `json:"token"`
	}
}

type pageBody struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	Author    string    `json:"author"`
	Views     int64     `json:"views"`
	Owned     bool      `json:"owned"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	EditToken string    `json:"editToken,omitempty"`
}

type pageOutput struct {
	Body pageBody
}

type summaryBody struct {
	Slug      string    `json:"slug"`
	Title     string    `json:"title"`
	Author    string    `json:"author,omitempty"`
	Views     int64     `json:"views"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
}

type summariesOutput struct {
	Body struct {
		Pages []summaryBody `json:"pages"`
	}
}

type slugInput struct {
	Slug string `path:"slug" maxLength:"200"`
}

type authorizedSlugInput struct {
	Slug      string `path:"slug" maxLength:"200"`
	EditToken string `header:"X-Edit-Token" doc:"Edit token; not needed when signed in as the page owner"`
}

type listInput struct {
	Limit int `query:"limit" minimum:"0" maximum:"1000" doc:"Maximum number of pages; defaults to 50"`
}

type okOutput struct {
	Body struct {
		OK bool `json:"ok"`
	}
}

func (s *Server) registerPageAPIRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "check-slug",
		Method:      stdhttp.MethodPost,
		Path:        "/check-slug",
		Summary:     "Check whether a custom slug can be used",
		Tags:        []string{"pages"},
	}, s.checkSlugHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "publish",
		Method:      stdhttp.MethodPost,
		Path:        "/publish",
		Summary:     "Publish a new page or edit an existing one",
		Tags:        []string{"pages"},
		Errors:      []int{stdhttp.StatusBadRequest, stdhttp.StatusForbidden, stdhttp.StatusNotFound, stdhttp.StatusConflict, stdhttp.StatusServiceUnavailable},
	}, s.publishHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-pages",
		Method:      stdhttp.MethodGet,
		Path:        "/api/pages",
		Summary:     "List recently published pages",
		Tags:        []string{"pages"},
	}, s.listRecentHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "get-page",
		Method:      stdhttp.MethodGet,
		Path:        "/api/pages/{slug}",
		Summary:     "Read a page and count the view",
		Tags:        []string{"pages"},
		Errors:      []int{stdhttp.StatusNotFound},
	}, s.getPageHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "open-page-for-edit",
		Method:      stdhttp.MethodGet,
		Path:        "/api/pages/{slug}/edit",
		Summary:     "Load a page into the editor",
		Tags:        []string{"pages"},
		Errors:      []int{stdhttp.StatusForbidden, stdhttp.StatusNotFound},
	}, s.openForEditHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "delete-page",
		Method:      stdhttp.MethodDelete,
		Path:        "/api/pages/{slug}",
		Summary:     "Delete a page",
		Tags:        []string{"pages"},
		Errors:      []int{stdhttp.StatusForbidden, stdhttp.StatusNotFound, stdhttp.StatusServiceUnavailable},
	}, s.deletePageHandler)

	huma.Register(s.api, huma.Operation{
		OperationID: "list-my-pages",
		Method:      stdhttp.MethodGet,
		Path:        "/api/me/pages",
		Summary:     "List pages created by the signed-in user",
		Tags:        []string{"pages"},
		Errors:      []int{stdhttp.StatusUnauthorized},
	}, s.listMyPagesHandler)
}

func (s *Server) checkSlugHandler(ctx context.Context, input *checkSlugInput) (*checkSlugOutput, error) {
	result, err := s.pages.CheckSlug(ctx, input.Body.Slug)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "checking slug", logrus.Fields{"slug": input.Body.Slug})
	}

	out := &checkSlugOutput{}
	out.Body.Available = result.Available
	out.Body.Reason = result.Reason
	out.Body.NormalizedSlug = result.NormalizedSlug
	return out, nil
}

func (s *Server) publishHandler(ctx context.Context, input *publishInput) (*publishOutput, error) {
	result, err := s.pages.Publish(ctx, pages.PublishInput{
		Slug:       strings.TrimSpace(input.Body.Slug),
		EditToken:  pages.ParseEditToken(input.Body.EditToken),
		Owner:      ownerFromContext(ctx),
		Title:      input.Body.Title,
		Content:    input.Body.Content,
		Author:     input.Body.Author,
		CustomSlug: input.Body.CustomSlug,
	})
	if err != nil {
		return nil, s.apiFailure(ctx, err, "publishing page", logrus.Fields{"slug": strings.TrimSpace(input.Body.Slug)})
	}

	out := &publishOutput{}
	out.Body.OK = true
	out.Body.Slug = result.Slug
	out.Body.Token = result.EditToken.Reveal()
	return out, nil
}

func (s *Server) getPageHandler(ctx context.Context, input *slugInput) (*pageOutput, error) {
	page, err := s.pages.View(ctx, input.Slug)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "loading page", logrus.Fields{"slug": input.Slug})
	}
	return &pageOutput{Body: s.pageBody(page, false)}, nil
}

func (s *Server) openForEditHandler(ctx context.Context, input *authorizedSlugInput) (*pageOutput, error) {
	page, err := s.pages.OpenForEdit(ctx, input.Slug, pages.ParseEditToken(input.EditToken), ownerFromContext(ctx))
	if err != nil {
		return nil, s.apiFailure(ctx, err, "opening page for edit", logrus.Fields{"slug": input.Slug})
	}
	return &pageOutput{Body: s.pageBody(page, true)}, nil
}

func (s *Server) deletePageHandler(ctx context.Context, input *authorizedSlugInput) (*okOutput, error) {
	if err := s.pages.Delete(ctx, input.Slug, pages.ParseEditToken(input.EditToken), ownerFromContext(ctx)); err != nil {
		return nil, s.apiFailure(ctx, err, "deleting page", logrus.Fields{"slug": input.Slug})
	}

	out := &okOutput{}
	out.Body.OK = true
	return out, nil
}

func (s *Server) listRecentHandler(ctx context.Context, input *listInput) (*summariesOutput, error) {
	summaries, err := s.pages.ListRecent(ctx, input.Limit)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "listing recent pages", nil)
	}
	return s.summariesOutput(summaries), nil
}

func (s *Server) listMyPagesHandler(ctx context.Context, input *listInput) (*summariesOutput, error) {
	owner := ownerFromContext(ctx)
	if owner.IsZero() {
		return nil, &apiError{status: stdhttp.StatusUnauthorized, Code: "unauthorized"}
	}

	summaries, err := s.pages.ListOwned(ctx, owner, input.Limit)
	if err != nil {
		return nil, s.apiFailure(ctx, err, "listing owner pages", logrus.Fields{"owner_id": owner.String()})
	}
	return s.summariesOutput(summaries), nil
}

func (s *Server) pageBody(page *pages.Page, includeToken bool) pageBody {
	body := pageBody{
		Slug:      page.Slug,
		Title:     page.Title,
		Content:   page.Content,
		Author:    page.Author,
		Views:     page.Views,
		Owned:     page.Owned(),
		URL:       s.pageURL(page.Slug),
		CreatedAt: page.CreatedAt,
		UpdatedAt: page.UpdatedAt,
	}
	if includeToken {
		body.EditToken = page.EditToken.Reveal()
	}
	return body
}

func (s *Server) summariesOutput(summaries []pages.Summary) *summariesOutput {
	out := &summariesOutput{}
	out.Body.Pages = make([]summaryBody, 0, len(summaries))
	for _, summary := range summaries {
		out.Body.Pages = append(out.Body.Pages, summaryBody{
			Slug:      summary.Slug,
			Title:     summary.Title,
			Author:    summary.Author,
			Views:     summary.Views,
			URL:       s.pageURL(summary.Slug),
			CreatedAt: summary.CreatedAt,
		})
	}
	return out
}
