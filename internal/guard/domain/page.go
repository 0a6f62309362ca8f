package domain

// Page is the text and image references extracted from a fetched HTML document.
type Page struct {
	URL    string
	Text   string
	Images []string // absolute URLs in document order, de-duplicated
}
