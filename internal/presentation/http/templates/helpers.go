package templates

import (
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/a-h/templ"
)

// RawHTML returns a templ component that writes the provided HTML without escaping.
func RawHTML(html string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		_, err := io.WriteString(w, html)
		return err
	})
}

// writer accumulates the first write error so components can emit markup without checking every call.
type writer struct {
	w   io.Writer
	err error
}

func (w *writer) raw(parts ...string) {
	for _, part := range parts {
		if w.err != nil {
			return
		}
		_, w.err = io.WriteString(w.w, part)
	}
}

func (w *writer) text(value string) {
	w.raw(templ.EscapeString(value))
}

func (w *writer) component(ctx context.Context, component templ.Component) {
	if w.err != nil {
		return
	}
	w.err = component.Render(ctx, w.w)
}

func formatViews(views int64) string {
	if views == 1 {
		return "1 view"
	}
	return strconv.FormatInt(views, 10) + " views"
}

func pageTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" || title == SiteName {
		return SiteName
	}
	return title + " • " + SiteName
}
