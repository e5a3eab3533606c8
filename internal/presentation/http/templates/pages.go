package templates

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// HomePage renders the landing page with the most recent pages.
func HomePage(data HomePageData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<section class="intro"><h1>Write something and share the link.</h1>`,
			`<p>No account needed. Keep your edit link to change the page later.</p>`,
			`<a class="button" href="/new">Start writing</a></section>`)
		w.raw(`<section class="recent"><h2>Recently published</h2>`)
		writeSummaries(w, data.Recent, "Nothing has been published yet.")
		w.raw(`</section>`)
		return w.err
	})
	return Layout(data.Layout, body)
}

// PageView renders a published page.
func PageView(data PageViewData) templ.Component {
	body := templ.ComponentFunc(func(ctx context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<article class="page" data-slug="`)
		w.text(data.Slug)
		w.raw(`"><h1>`)
		w.text(data.Title)
		w.raw(`</h1><p class="meta">`)
		if data.Author != "" {
			w.text(data.Author)
			w.raw(` · `)
		}
		w.text(data.Created)
		w.raw(` · `)
		w.text(formatViews(data.Views))
		w.raw(`</p><div class="content">`)
		w.component(ctx, RawHTML(data.HTML))
		w.raw(`</div>`)
		if data.CanEdit && data.EditPath != "" {
			w.raw(`<a class="button" href="`)
			w.text(data.EditPath)
			w.raw(`">Edit</a>`)
		}
		w.raw(`</article>`)
		return w.err
	})
	return Layout(data.Layout, body)
}

// EditorPage renders the page editor. The script posts to /publish and keeps edit tokens in local storage.
func EditorPage(data EditorPageData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<form id="editor" class="editor" data-slug="`)
		w.text(data.Slug)
		w.raw(`"><input name="title" placeholder="Title" maxlength="120" required value="`)
		w.text(data.Title)
		w.raw(`"><input name="author" placeholder="Your name (optional)" maxlength="50" value="`)
		w.text(data.Author)
		w.raw(`">`)
		if data.Slug == "" {
			w.raw(`<input name="customSlug" placeholder="Custom link (optional)" maxlength="50">`,
				`<p class="slug-status" aria-live="polite"></p>`)
		}
		w.raw(`<textarea name="content" rows="20" required>`)
		w.text(data.Content)
		w.raw(`</textarea><button type="submit">Publish</button><p class="error" role="alert"></p></form>`,
			`<script src="/static/editor.js" defer></script>`)
		return w.err
	})
	return Layout(data.Layout, body)
}

// DashboardPage lists the signed-in user's pages.
func DashboardPage(data DashboardPageData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<section class="dashboard"><h1>Hello, `)
		w.text(data.Name)
		w.raw(`</h1><h2>Your pages</h2>`)
		writeSummaries(w, data.Posts, "You haven't published anything yet.")
		w.raw(`</section>`)
		return w.err
	})
	return Layout(data.Layout, body)
}

// ErrorPage renders an error view.
func ErrorPage(data ErrorPageData) templ.Component {
	body := templ.ComponentFunc(func(_ context.Context, out io.Writer) error {
		w := &writer{w: out}
		w.raw(`<section class="error-page"><h1>`)
		w.text(data.StatusLabel)
		w.raw(`</h1><p>`)
		w.text(data.Message)
		w.raw(`</p><a href="/">Back to the start page</a></section>`)
		return w.err
	})
	return Layout(data.Layout, body)
}

func writeSummaries(w *writer, items []PageSummaryView, empty string) {
	if len(items) == 0 {
		w.raw(`<p class="empty">`)
		w.text(empty)
		w.raw(`</p>`)
		return
	}

	w.raw(`<ul class="page-list">`)
	for _, item := range items {
		w.raw(`<li><a href="`)
		w.text(item.URL)
		w.raw(`">`)
		w.text(item.Title)
		w.raw(`</a> <span class="meta">`)
		if item.Author != "" {
			w.text(item.Author)
			w.raw(` · `)
		}
		if item.Created != "" {
			w.text(item.Created)
			w.raw(` · `)
		}
		w.text(formatViews(item.Views))
		w.raw(`</span></li>`)
	}
	w.raw(`</ul>`)
}
