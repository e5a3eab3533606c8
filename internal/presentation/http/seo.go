package http

import (
	"context"
	"encoding/xml"
	stdhttp "net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/rotisserie/eris"

	"shareme/app/internal/domain/pages"
)

const (
	xmlContentType   = "application/xml; charset=utf-8"
	textContentType  = "text/plain; charset=utf-8"
	sitemapNamespace = "http://www.sitemaps.org/schemas/sitemap/0.9"
	sitemapPageLimit = pages.MaxListLimit
	sitemapDate      = "2006-01-02"
)

var robotsDisallowed = []string{"/edit/", "/auth/", "/logout", "/dashboard", "/api/", "/bot/"}

type sitemapURL struct {
	Loc        string `xml:"loc"`
	LastMod    string `xml:"lastmod,omitempty"`
	ChangeFreq string `xml:"changefreq,omitempty"`
	Priority   string `xml:"priority,omitempty"`
}

type urlSet struct {
	XMLName xml.Name     `xml:"urlset"`
	XMLNS   string       `xml:"xmlns,attr"`
	URLs    []sitemapURL `xml:"url"`
}

type sitemapRef struct {
	Loc     string `xml:"loc"`
	LastMod string `xml:"lastmod,omitempty"`
}

type sitemapIndex struct {
	XMLName  xml.Name     `xml:"sitemapindex"`
	XMLNS    string       `xml:"xmlns,attr"`
	Sitemaps []sitemapRef `xml:"sitemap"`
}

type documentResponse struct {
	Status       int
	ContentType  string `header:"Content-Type"`
	CacheControl string `header:"Cache-Control"`
	Body         []byte
}

func (s *Server) registerSEORoutes() {
	huma.Get(s.api, "/sitemap.xml", s.sitemapHandler, documentOperation("Sitemap of published pages", xmlContentType))
	huma.Get(s.api, "/sitemap-index.xml", s.sitemapIndexHandler, documentOperation("Sitemap index", xmlContentType))
	huma.Get(s.api, "/robots.txt", s.robotsHandler, documentOperation("Crawler rules", textContentType))
}

func (s *Server) sitemapHandler(ctx context.Context, _ *struct{}) (*documentResponse, error) {
	today := time.Now().UTC().Format(sitemapDate)
	set := urlSet{
		XMLNS: sitemapNamespace,
		URLs: []sitemapURL{
			{Loc: s.absoluteURL("/"), LastMod: today, ChangeFreq: "daily", Priority: "1.0"},
			{Loc: s.absoluteURL("/new"), ChangeFreq: "monthly", Priority: "0.5"},
		},
	}

	recent, err := s.pages.ListRecent(ctx, sitemapPageLimit)
	if err != nil {
		s.recordError(ctx, err, "listing pages for sitemap", nil)
	}
	for _, summary := range recent {
		entry := sitemapURL{Loc: s.pageURL(summary.Slug), ChangeFreq: "weekly", Priority: "0.8"}
		if !summary.CreatedAt.IsZero() {
			entry.LastMod = summary.CreatedAt.UTC().Format(sitemapDate)
		}
		set.URLs = append(set.URLs, entry)
	}

	return s.xmlDocument(ctx, set, "sitemap")
}

func (s *Server) sitemapIndexHandler(ctx context.Context, _ *struct{}) (*documentResponse, error) {
	index := sitemapIndex{
		XMLNS: sitemapNamespace,
		Sitemaps: []sitemapRef{
			{Loc: s.absoluteURL("/sitemap.xml"), LastMod: time.Now().UTC().Format(sitemapDate)},
		},
	}
	return s.xmlDocument(ctx, index, "sitemap index")
}

func (s *Server) robotsHandler(_ context.Context, _ *struct{}) (*documentResponse, error) {
	var b strings.Builder
	b.WriteString("User-agent: *\nAllow: /\n")
	for _, path := range robotsDisallowed {
		b.WriteString("Disallow: " + path + "\n")
	}
	b.WriteString("\nSitemap: " + s.absoluteURL("/sitemap.xml") + "\n")

	return &documentResponse{
		Status:       stdhttp.StatusOK,
		ContentType:  textContentType,
		CacheControl: "public, max-age=86400",
		Body:         []byte(b.String()),
	}, nil
}

func (s *Server) xmlDocument(ctx context.Context, document any, what string) (*documentResponse, error) {
	body, err := xml.MarshalIndent(document, "", "  ")
	if err != nil {
		err = eris.Wrapf(err, "encoding %s", what)
		s.recordError(ctx, err, "rendering "+what, nil)
		return nil, huma.Error500InternalServerError("failed to render " + what)
	}

	return &documentResponse{
		Status:       stdhttp.StatusOK,
		ContentType:  xmlContentType,
		CacheControl: "public, max-age=3600",
		Body:         append([]byte(xml.Header), body...),
	}, nil
}

func documentOperation(summary, contentType string) func(op *huma.Operation) {
	return func(op *huma.Operation) {
		op.Summary = summary
		op.Tags = []string{"seo"}
		op.Responses = map[string]*huma.Response{
			"200": {
				Description: stdhttp.StatusText(stdhttp.StatusOK),
				Content: map[string]*huma.MediaType{
					contentType: {Schema: &huma.Schema{Type: "string"}},
				},
			},
		}
	}
}
