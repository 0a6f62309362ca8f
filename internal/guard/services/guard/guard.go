package guard

import (
	"context"
	"errors"
	"strings"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/domain"
)

// BlockSession is the stateful override-file session.
type BlockSession interface {
	Path() string
	Active() bool
	List() []string
	Enable(ctx context.Context) error
	Disable(ctx context.Context) error
	Block(ctx context.Context, target domain.BlockTarget) error
	Unblock(ctx context.Context, target domain.BlockTarget) error
}

// KeywordStore is the persistent keyword lists.
type KeywordStore interface {
	Add(word, category string) (bool, error)
	Remove(word, category string) (bool, error)
	List(category string) []string
	Snapshot() domain.Keywords
}

// ContentChecker scores text.
type ContentChecker interface {
	Check(text string, kw domain.Keywords) (bool, domain.ScoreResult)
}

// WebInspector produces a verdict for a URL.
type WebInspector interface {
	Inspect(ctx context.Context, url string) domain.Verdict
}

// Options wires a Guard. All collaborators are required.
type Options struct {
	Session   BlockSession
	Keywords  KeywordStore
	Checker   ContentChecker
	Inspector WebInspector
	Logger    logpkg.Logger
}

// Status summarizes the session for the UI.
type Status struct {
	Active  bool   `json:"active"`
	Path    string `json:"path"`
	Blocked int    `json:"blocked"`
}

// Guard is the inbound operation surface. It validates input and delegates.
type Guard struct {
	session   BlockSession
	keywords  KeywordStore
	checker   ContentChecker
	inspector WebInspector
	logger    logpkg.Logger
}

// New builds a Guard.
func New(opts Options) (*Guard, error) {
	if opts.Session == nil || opts.Keywords == nil || opts.Checker == nil || opts.Inspector == nil {
		return nil, errors.New("guard: session, keywords, checker and inspector are required")
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	return &Guard{
		session:   opts.Session,
		keywords:  opts.Keywords,
		checker:   opts.Checker,
		inspector: opts.Inspector,
		logger:    opts.Logger,
	}, nil
}

// BlockURL validates raw and blocks it. The returned target is the
// normalized form that was written.
func (g *Guard) BlockURL(ctx context.Context, raw string) (domain.BlockTarget, error) {
	t, err := Validate(raw)
	if err != nil {
		g.logger.Warn(map[string]any{"input": raw, "error": err}, "block_rejected")
		return t, err
	}
	if err := g.session.Block(ctx, t); err != nil {
		return t, err
	}
	g.logger.Info(map[string]any{"target": t.Name, "kind": t.Kind.String()}, "blocked")
	return t, nil
}

// UnblockURL validates raw and unblocks it along with its www./bare counterpart.
func (g *Guard) UnblockURL(ctx context.Context, raw string) (domain.BlockTarget, error) {
	t, err := Validate(raw)
	if err != nil {
		g.logger.Warn(map[string]any{"input": raw, "error": err}, "unblock_rejected")
		return t, err
	}
	if err := g.session.Unblock(ctx, t); err != nil {
		return t, err
	}
	g.logger.Info(map[string]any{"target": t.Name, "kind": t.Kind.String()}, "unblocked")
	return t, nil
}

func (g *Guard) ListBlocked() []string { return g.session.List() }

func (g *Guard) Enable(ctx context.Context) error { return g.session.Enable(ctx) }

func (g *Guard) Disable(ctx context.Context) error { return g.session.Disable(ctx) }

func (g *Guard) Status() Status {
	return Status{Active: g.session.Active(), Path: g.session.Path(), Blocked: len(g.session.List())}
}

// AddKeyword reports false with a nil error when the keyword already exists.
func (g *Guard) AddKeyword(word, category string) (bool, error) {
	return g.keywords.Add(word, category)
}

func (g *Guard) RemoveKeyword(word, category string) (bool, error) {
	return g.keywords.Remove(word, category)
}

// ListKeywords returns one category, or all of them when category is empty.
func (g *Guard) ListKeywords(category string) domain.Keywords {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return g.keywords.Snapshot()
	}
	words := g.keywords.List(category)
	if words == nil {
		words = []string{}
	}
	return domain.Keywords{category: words}
}

func (g *Guard) CheckContent(text string) (bool, domain.ScoreResult) {
	return g.checker.Check(text, g.keywords.Snapshot())
}

func (g *Guard) CheckWebpage(ctx context.Context, url string) domain.Verdict {
	return g.inspector.Inspect(ctx, url)
}
