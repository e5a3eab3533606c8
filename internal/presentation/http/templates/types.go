package templates

// SiteName is shown in the header and page titles.
const SiteName = "ShareMe"

// LayoutData carries the shared page chrome.
type LayoutData struct {
	Title       string
	Description string
	Canonical   string
	UserName    string
}

// PageSummaryView is one entry in a page listing.
type PageSummaryView struct {
	Title   string
	URL     string
	Author  string
	Views   int64
	Created string
}

// HomePageData lists the most recent pages on the landing page.
type HomePageData struct {
	Layout LayoutData
	Recent []PageSummaryView
}

// PageViewData contains a published page. HTML is already sanitized.
type PageViewData struct {
	Layout   LayoutData
	Slug     string
	Title    string
	Author   string
	HTML     string
	Views    int64
	Created  string
	CanEdit  bool
	EditPath string
}

// EditorPageData prefills the editor. Slug is empty for new pages.
type EditorPageData struct {
	Layout  LayoutData
	Slug    string
	Title   string
	Author  string
	Content string
}

// DashboardPageData lists the signed-in user's pages.
type DashboardPageData struct {
	Layout LayoutData
	Name   string
	Posts  []PageSummaryView
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	Layout      LayoutData
	StatusLabel string
	Message     string
}
