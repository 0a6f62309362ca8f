package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/haukened/hostguard/internal/guard/common/clock"
	"github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/config"
	"github.com/haukened/hostguard/internal/guard/domain"
	"github.com/haukened/hostguard/internal/guard/gateways/api"
	"github.com/haukened/hostguard/internal/guard/gateways/fetch"
	"github.com/haukened/hostguard/internal/guard/gateways/flush"
	"github.com/haukened/hostguard/internal/guard/gateways/imageclass"
	"github.com/haukened/hostguard/internal/guard/gateways/osfs"
	"github.com/haukened/hostguard/internal/guard/repos/journal"
	"github.com/haukened/hostguard/internal/guard/repos/keywords"
	"github.com/haukened/hostguard/internal/guard/services/guard"
	"github.com/haukened/hostguard/internal/guard/services/inspector"
	"github.com/haukened/hostguard/internal/guard/services/scorer"
	"github.com/haukened/hostguard/internal/guard/services/session"
)

// Application holds the wired components of a serving hostguard process.
type Application struct {
	config  *config.AppConfig
	guard   *guard.Guard
	session *session.Session
	journal *journal.Journal
	server  *api.Server
	logger  log.Logger
}

// contentStack is the subset needed by check and inspect, which never touch
// the override file.
type contentStack struct {
	keywords  *keywords.Store
	scorer    *scorer.Scorer
	inspector *inspector.Inspector
}

// buildContentStack opens the keyword store and builds the scorer and inspector.
func buildContentStack(cfg *config.AppConfig, logger log.Logger) (*contentStack, error) {
	if err := ensureParentDir(cfg.Keywords.Path); err != nil {
		return nil, err
	}
	kw, err := keywords.Open(cfg.Keywords.Path, log.Component(logger, "keywords"))
	if err != nil {
		return nil, fmt.Errorf("failed to open keyword store: %w", err)
	}

	sc, err := scorer.New(scorer.Options{
		Weights: domain.Weights{
			Explicit:          cfg.Scorer.ExplicitWeight,
			Moderate:          cfg.Scorer.ModerateWeight,
			ExplicitThreshold: cfg.Scorer.ExplicitThreshold,
			ModerateThreshold: cfg.Scorer.ModerateThreshold,
		},
		PatternCacheSize: cfg.Scorer.PatternCache,
		Logger:           log.Component(logger, "scorer"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build scorer: %w", err)
	}

	fetcher := fetch.New(fetch.Options{
		Timeout:   cfg.Inspector.Timeout,
		UserAgent: cfg.Inspector.UserAgent,
	})

	var classifier inspector.ImageClassifier = imageclass.Unavailable{}
	if cfg.Classifier.URL != "" {
		classifier = imageclass.NewRemote(imageclass.RemoteOptions{
			Endpoint:  cfg.Classifier.URL,
			Threshold: cfg.Classifier.Threshold,
			Images:    fetcher,
		})
		logger.Info(map[string]any{"url": cfg.Classifier.URL, "threshold": cfg.Classifier.Threshold}, "Image classifier configured")
	}

	insp, err := inspector.New(inspector.Options{
		Fetcher:      fetcher,
		Classifier:   classifier,
		Checker:      sc,
		Keywords:     kw,
		Timeout:      cfg.Inspector.Timeout,
		ImageTimeout: cfg.Inspector.ImageTimeout,
		MaxImages:    cfg.Inspector.MaxImages,
		Workers:      cfg.Inspector.Workers,
		Logger:       log.Component(logger, "inspector"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build inspector: %w", err)
	}

	return &contentStack{keywords: kw, scorer: sc, inspector: insp}, nil
}

// buildApplication constructs all components and wires them together.
// It recovers a crashed session before capturing the new snapshot.
func buildApplication(cfg *config.AppConfig, logger log.Logger) (*Application, error) {
	content, err := buildContentStack(cfg, logger)
	if err != nil {
		return nil, err
	}

	j, err := openJournal(cfg)
	if err != nil {
		return nil, err
	}

	fs := osfs.New()
	if _, err := session.Recover(cfg.Hosts.Path, fs, j, log.Component(logger, "recover")); err != nil && !errors.Is(err, domain.ErrNoSnapshot) {
		_ = j.Close()
		return nil, fmt.Errorf("failed to recover override file: %w", err)
	}

	var flusher session.Flusher = flush.Nop{}
	if !cfg.Flush.Disabled {
		flusher = flush.New(flush.Options{Logger: log.Component(logger, "flush")})
	}

	sess, err := session.New(session.Options{
		Path:    cfg.Hosts.Path,
		FS:      fs,
		Flusher: flusher,
		Journal: j,
		Logger:  log.Component(logger, "session"),
	})
	if err != nil {
		_ = j.Close()
		return nil, fmt.Errorf("failed to start session: %w", err)
	}

	g, err := guard.New(guard.Options{
		Session:   sess,
		Keywords:  content.keywords,
		Checker:   content.scorer,
		Inspector: content.inspector,
		Logger:    log.Component(logger, "guard"),
	})
	if err != nil {
		_ = j.Close()
		return nil, err
	}

	router := api.NewRouter(g, api.NewMetrics(), log.Component(logger, "api"))
	return &Application{
		config:  cfg,
		guard:   g,
		session: sess,
		journal: j,
		server:  api.NewServer(cfg.API.Listen, router, log.Component(logger, "api")),
		logger:  logger,
	}, nil
}

// Run serves the API until ctx is cancelled, then restores the override file
// if blocking is still enabled.
func (a *Application) Run(ctx context.Context) error {
	serveErr := a.server.Run(ctx)

	var restoreErr error
	if a.session.Active() {
		a.logger.Info(map[string]any{"path": a.session.Path()}, "Restoring override file before exit")
		restoreErr = a.session.Disable(context.Background())
	}
	if err := a.journal.Close(); err != nil {
		a.logger.Warn(map[string]any{"error": err}, "Journal close failed")
	}
	return errors.Join(serveErr, restoreErr)
}

func openJournal(cfg *config.AppConfig) (*journal.Journal, error) {
	if err := ensureParentDir(cfg.Journal.Path); err != nil {
		return nil, err
	}
	j, err := journal.Open(cfg.Journal.Path, clock.RealClock{})
	if err != nil {
		return nil, fmt.Errorf("failed to open journal %s: %w", cfg.Journal.Path, err)
	}
	return j, nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	return nil
}
