package http

import (
	"bytes"
	"context"
	"fmt"
	"html"
	stdhttp "net/http"
	"strconv"

	"github.com/a-h/templ"
	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"shareme/app/internal/presentation/http/templates"
)

const (
	htmlContentType = "text/html; charset=utf-8"
	jsonContentType = "application/json"
)

type htmlResponse struct {
	Status      int
	ContentType string `header:"Content-Type"`
	Location    string `header:"Location"`
	SetCookie   string `header:"Set-Cookie"`
	Body        []byte
}

func newHTMLResponse(status int, body []byte) *htmlResponse {
	return &htmlResponse{
		Status:      status,
		ContentType: htmlContentType,
		Body:        body,
	}
}

func redirectResponse(location string, cookie *stdhttp.Cookie) *htmlResponse {
	resp := newHTMLResponse(stdhttp.StatusFound, nil)
	resp.Location = location
	if cookie != nil {
		resp.SetCookie = cookie.String()
	}
	return resp
}

func renderComponent(ctx context.Context, component templ.Component) ([]byte, error) {
	var buf bytes.Buffer
	if err := component.Render(ctx, &buf); err != nil {
		return nil, eris.Wrap(err, "rendering component")
	}
	return buf.Bytes(), nil
}

// renderPage renders a full HTML view, falling back to the error page when rendering fails.
func (s *Server) renderPage(ctx context.Context, status int, component templ.Component, what string) *htmlResponse {
	body, err := renderComponent(ctx, component)
	if err != nil {
		s.recordError(ctx, err, "rendering "+what, nil)
		return s.renderErrorResponse(ctx, stdhttp.StatusInternalServerError, "We couldn't render this page right now.")
	}
	return newHTMLResponse(status, body)
}

func (s *Server) renderErrorResponse(ctx context.Context, status int, message string) *htmlResponse {
	label := fmt.Sprintf("%d %s", status, stdhttp.StatusText(status))
	component := templates.ErrorPage(templates.ErrorPageData{
		Layout:      s.layout(ctx, label, ""),
		StatusLabel: label,
		Message:     message,
	})

	body, err := renderComponent(ctx, component)
	if err != nil {
		s.recordError(ctx, err, "rendering error page", logrus.Fields{"status": status})
		fallback := fmt.Sprintf("<html><body><h1>%s</h1><p>%s</p></body></html>", html.EscapeString(label), html.EscapeString(message))
		return newHTMLResponse(status, []byte(fallback))
	}

	return newHTMLResponse(status, body)
}

func (s *Server) layout(ctx context.Context, title, canonicalPath string) templates.LayoutData {
	data := templates.LayoutData{Title: title}
	if canonicalPath != "" {
		data.Canonical = s.absoluteURL(canonicalPath)
	}
	if session, ok := SessionFromContext(ctx); ok {
		data.UserName = session.Name
		if data.UserName == "" {
			data.UserName = "Dashboard"
		}
	}
	return data
}

func htmlOperation(summary string, statuses ...int) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		if summary != "" {
			op.Summary = summary
		}
		op.Tags = []string{"views"}
		if op.Responses == nil {
			op.Responses = map[string]*huma.Response{}
		}

		statusCodes := append([]int{stdhttp.StatusOK}, statuses...)
		for _, status := range statusCodes {
			code := strconv.Itoa(status)
			op.Responses[code] = &huma.Response{
				Description: stdhttp.StatusText(status),
				Content: map[string]*huma.MediaType{
					htmlContentType: {
						Schema: &huma.Schema{Type: "string"},
					},
				},
			}
		}
	}
}
