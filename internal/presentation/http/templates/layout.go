package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Layout wraps body in the shared document chrome.
func Layout(data LayoutData, body templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`,
			`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		w.raw(`<title>`)
		w.text(pageTitle(data.Title))
		w.raw(`</title>`)
		if data.Description != "" {
			w.raw(`<meta name="description" content="`)
			w.text(data.Description)
			w.raw(`">`)
		}
		if data.Canonical != "" {
			w.raw(`<link rel="canonical" href="`)
			w.text(data.Canonical)
			w.raw(`">`)
		}
		w.raw(`<link rel="stylesheet" href="/static/app.css"></head><body>`)

		w.raw(`<header class="site-header"><a class="brand" href="/">`)
		w.text(SiteName)
		w.raw(`</a><nav><a href="/new">New page</a>`)
		if data.UserName != "" {
			w.raw(`<a href="/dashboard">`)
			w.text(data.UserName)
			w.raw(`</a><a href="/logout">Log out</a>`)
		}
		w.raw(`</nav></header><main>`)

		w.component(ctx, body)

		w.raw(`</main><footer class="site-footer">Pages are public to anyone with the link.</footer></body></html>`)
		return w.err
	})
}
