package inspector

import (
	"context"

	"github.com/haukened/hostguard/internal/guard/domain"
)

// PageFetcher retrieves a page and extracts its text and image URLs.
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (domain.Page, error)
}

// ImageClassifier is an optional capability; Available reports whether it can be used.
type ImageClassifier interface {
	Available() bool
	Classify(ctx context.Context, imageURL string) (domain.ImageVerdict, error)
}

// ContentChecker scores text against keyword lists.
type ContentChecker interface {
	Check(text string, kw domain.Keywords) (bool, domain.ScoreResult)
}

// KeywordSource supplies the current keyword lists.
type KeywordSource interface {
	Snapshot() domain.Keywords
}
