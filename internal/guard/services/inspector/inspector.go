package inspector

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/common/utils"
	"github.com/haukened/hostguard/internal/guard/domain"
)

const (
	DefaultTimeout      = 10 * time.Second
	DefaultImageTimeout = 5 * time.Second
	DefaultMaxImages    = 20
	DefaultWorkers      = 4
)

// Options configures an Inspector. Fetcher, Checker and Keywords are required.
type Options struct {
	Fetcher    PageFetcher
	Classifier ImageClassifier
	Checker    ContentChecker
	Keywords   KeywordSource

	Timeout      time.Duration
	ImageTimeout time.Duration
	MaxImages    int
	Workers      int
	Logger       logpkg.Logger
}

// Inspector fetches a page, scores its text and optionally classifies its images.
type Inspector struct {
	fetcher    PageFetcher
	classifier ImageClassifier
	checker    ContentChecker
	keywords   KeywordSource

	timeout      time.Duration
	imageTimeout time.Duration
	maxImages    int
	workers      int
	logger       logpkg.Logger
}

// New builds an Inspector.
func New(opts Options) (*Inspector, error) {
	if opts.Fetcher == nil || opts.Checker == nil || opts.Keywords == nil {
		return nil, errors.New("inspector: fetcher, checker and keywords are required")
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ImageTimeout <= 0 {
		opts.ImageTimeout = DefaultImageTimeout
	}
	if opts.MaxImages <= 0 {
		opts.MaxImages = DefaultMaxImages
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	return &Inspector{
		fetcher:      opts.Fetcher,
		classifier:   opts.Classifier,
		checker:      opts.Checker,
		keywords:     opts.Keywords,
		timeout:      opts.Timeout,
		imageTimeout: opts.ImageTimeout,
		maxImages:    opts.MaxImages,
		workers:      opts.Workers,
		logger:       opts.Logger,
	}, nil
}

// Inspect never returns an error: any fetch failure yields the safe verdict.
func (in *Inspector) Inspect(ctx context.Context, rawURL string) domain.Verdict {
	v := domain.SafeVerdict(rawURL)
	v.Host, v.Apex = hostOf(rawURL)

	fctx, cancel := context.WithTimeout(ctx, in.timeout)
	page, err := in.fetcher.Fetch(fctx, rawURL)
	cancel()
	if err != nil {
		in.logger.Warn(map[string]any{"url": rawURL, "error": err}, "inspect_fetch_failed")
		return v
	}
	if page.URL != "" {
		if h, a := hostOf(page.URL); h != "" {
			v.Host, v.Apex = h, a
		}
	}

	block, score := in.checker.Check(page.Text, in.keywords.Snapshot())
	v.Score = score
	if block {
		v.ShouldBlock = true
		v.Reason = textReason(score)
		in.logger.Info(map[string]any{"url": rawURL, "reason": v.Reason}, "inspect_blocked_text")
		return v
	}

	if in.classifier == nil || !in.classifier.Available() || len(page.Images) == 0 {
		return v
	}

	v.Images = in.classifyImages(ctx, page.Images)
	for _, img := range v.Images {
		if img.NSFW {
			v.ShouldBlock = true
			v.Reason = fmt.Sprintf("NSFW image detected (confidence: %.2f%%)", img.Confidence*100)
			in.logger.Info(map[string]any{"url": rawURL, "image": img.URL, "confidence": img.Confidence}, "inspect_blocked_image")
			break
		}
	}
	return v
}

// classifyImages classifies up to maxImages images with bounded concurrency.
// Results keep document order; failed images are dropped.
func (in *Inspector) classifyImages(ctx context.Context, images []string) []domain.ImageVerdict {
	if len(images) > in.maxImages {
		images = images[:in.maxImages]
	}

	results := make([]domain.ImageVerdict, len(images))
	ok := make([]bool, len(images))

	var g errgroup.Group
	g.SetLimit(in.workers)
	for i, u := range images {
		g.Go(func() error {
			ictx, cancel := context.WithTimeout(ctx, in.imageTimeout)
			defer cancel()
			res, err := in.classifier.Classify(ictx, u)
			if err != nil {
				in.logger.Debug(map[string]any{"image": u, "error": err}, "inspect_image_skipped")
				return nil
			}
			if res.URL == "" {
				res.URL = u
			}
			results[i], ok[i] = res, true
			return nil
		})
	}
	_ = g.Wait()

	out := make([]domain.ImageVerdict, 0, len(images))
	for i := range results {
		if ok[i] {
			out = append(out, results[i])
		}
	}
	return out
}

func textReason(s domain.ScoreResult) string {
	if len(s.Matches.Explicit) > 0 {
		return "Explicit keyword found: " + joinKeywords(s.Matches.Explicit)
	}
	return "Multiple moderate keywords found: " + joinKeywords(s.Matches.Moderate)
}

func joinKeywords(m []domain.KeywordMatch) string {
	words := make([]string, len(m))
	for i, km := range m {
		words[i] = km.Keyword
	}
	return strings.Join(words, ", ")
}

// hostOf returns the canonical host of rawURL and its registrable domain.
func hostOf(rawURL string) (string, string) {
	s := strings.TrimSpace(rawURL)
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return "", ""
	}
	host := utils.CanonicalHostName(u.Hostname())
	return host, utils.GetApexDomain(host)
}
