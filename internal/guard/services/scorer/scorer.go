package scorer

import (
	"fmt"
	"strings"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/domain"
)

// DefaultPatternCacheSize bounds the number of compiled keyword patterns kept.
const DefaultPatternCacheSize = 1024

// Options configures a Scorer.
type Options struct {
	Weights          domain.Weights
	PatternCacheSize int
	Logger           logpkg.Logger
}

// Scorer scores text against the explicit and moderate keyword tiers.
// Scoring is a pure function of (text, keywords, weights); the pattern cache
// only memoizes compilation.
type Scorer struct {
	weights  domain.Weights
	patterns *patternCache
	logger   logpkg.Logger
}

// New builds a Scorer. Zero weights fall back to domain.DefaultWeights.
func New(opts Options) (*Scorer, error) {
	if opts.Weights == (domain.Weights{}) {
		opts.Weights = domain.DefaultWeights()
	}
	if opts.PatternCacheSize == 0 {
		opts.PatternCacheSize = DefaultPatternCacheSize
	}
	if opts.Logger == nil {
		opts.Logger = logpkg.NewNoopLogger()
	}
	pc, err := newPatternCache(opts.PatternCacheSize)
	if err != nil {
		return nil, fmt.Errorf("pattern cache: %w", err)
	}
	return &Scorer{weights: opts.Weights, patterns: pc, logger: opts.Logger}, nil
}

// Weights returns the weights and thresholds in use.
func (s *Scorer) Weights() domain.Weights { return s.weights }

// Check scores text and applies the block thresholds.
func (s *Scorer) Check(text string, kw domain.Keywords) (bool, domain.ScoreResult) {
	res := s.Score(text, kw)
	return s.weights.ShouldBlock(res), res
}

// Score computes tier scores for text. It never fails: any internal fault
// yields domain.DefaultScore.
func (s *Scorer) Score(text string, kw domain.Keywords) (res domain.ScoreResult) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(map[string]any{"panic": fmt.Sprint(r)}, "score_recovered")
			res = domain.DefaultScore()
		}
	}()

	lower := strings.ToLower(text)
	idx := newTokenIndex(lower)

	explicitRaw, explicitMatches, err := s.tier(lower, idx, kw[domain.CategoryExplicit], s.weights.Explicit)
	if err != nil {
		s.logger.Warn(map[string]any{"tier": domain.CategoryExplicit, "error": err}, "score_degraded")
		return domain.DefaultScore()
	}
	moderateRaw, moderateMatches, err := s.tier(lower, idx, kw[domain.CategoryModerate], s.weights.Moderate)
	if err != nil {
		s.logger.Warn(map[string]any{"tier": domain.CategoryModerate, "error": err}, "score_degraded")
		return domain.DefaultScore()
	}

	res = domain.ScoreResult{
		Matches: domain.Matches{Explicit: explicitMatches, Moderate: moderateMatches},
	}
	total := domain.RoundScore(explicitRaw + moderateRaw)
	if total > 1.0 {
		res.Explicit = min(1.0, explicitRaw)
		res.Moderate = min(1.0, moderateRaw)
		res.Safe = 0.0
	} else {
		res.Explicit = explicitRaw
		res.Moderate = moderateRaw
		res.Safe = domain.RoundScore(1.0 - total)
	}
	return res
}

// tier accumulates weight × occurrences for every keyword with at least one
// whole-word match, in keyword order. Blank and repeated keywords are skipped.
func (s *Scorer) tier(text string, idx *tokenIndex, words []string, weight float64) (float64, []domain.KeywordMatch, error) {
	matches := make([]domain.KeywordMatch, 0)
	seen := make(map[string]struct{}, len(words))
	raw := 0.0
	for _, word := range words {
		kw := strings.ToLower(strings.TrimSpace(word))
		if kw == "" {
			continue
		}
		if _, dup := seen[kw]; dup {
			continue
		}
		seen[kw] = struct{}{}

		if !idx.mightContain(kw) {
			continue
		}
		re, err := s.patterns.get(kw)
		if err != nil {
			return 0, nil, fmt.Errorf("keyword %q: %w", word, err)
		}
		count := len(re.FindAllStringIndex(text, -1))
		if count == 0 {
			continue
		}
		raw += weight * float64(count)
		matches = append(matches, domain.KeywordMatch{Keyword: strings.TrimSpace(word), Count: count})
	}
	return domain.RoundScore(raw), matches, nil
}
