// Package visibility is the application layer: it composes the guard,
// fetcher, extractor, generators, sampler, and scorer into the two
// operations the service exposes, content initialization and analysis,
// plus the target content updates.
package visibility

import (
	"context"
	"net/url"
	"time"

	"github.com/turtacn/aivis/internal/domain/keyword"
	"github.com/turtacn/aivis/internal/domain/prompt"
	"github.com/turtacn/aivis/internal/domain/sampling"
	"github.com/turtacn/aivis/internal/domain/scoring"
	"github.com/turtacn/aivis/internal/domain/target"
	"github.com/turtacn/aivis/internal/infrastructure/extract"
	"github.com/turtacn/aivis/internal/infrastructure/fetch"
	"github.com/turtacn/aivis/internal/infrastructure/messaging/kafka"
	"github.com/turtacn/aivis/internal/infrastructure/netguard"
	"github.com/turtacn/aivis/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/aivis/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/aivis/pkg/errors"
	"github.com/turtacn/aivis/pkg/types/common"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

// minUsefulTextLen is the extracted-text length under which the site is
// treated as saying nothing and the name-seeded fallback text applies.
const minUsefulTextLen = 50

// fallbackTextSuffix seeds keyword generation when a site yields no text.
const fallbackTextSuffix = " provides services and solutions."

// URLValidator is the guard seam: it clears the user-supplied URL before
// any fetch is attempted. The fetcher applies the same guard again to every
// hop; validating here first lets the service tell an SSRF-blocked original
// URL (surfaced to the caller) apart from a blocked redirect (recovered).
type URLValidator interface {
	ValidateURL(ctx context.Context, rawURL string) (*url.URL, error)
}

// PageFetcher is the fetch seam.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*fetch.Page, error)
}

// InitLock is one held per-URL initialization lock.
type InitLock interface {
	Release(ctx context.Context) error
}

// LockFactory dedupes concurrent initializations of the same URL. A nil
// factory disables locking.
type LockFactory interface {
	Acquire(ctx context.Context, name string) (InitLock, error)
}

// EventPublisher carries domain events to the message bus. A nil publisher
// drops them.
type EventPublisher interface {
	Publish(ctx context.Context, topic, key string, envelope *kafka.EventEnvelope) error
}

// Deps wires the service. Repo, Fetcher, Keywords, Prompts, and Runner are
// required; the rest may be nil and degrade to no-ops.
type Deps struct {
	Repo     target.Repository
	Guard    URLValidator
	Fetcher  PageFetcher
	Keywords keyword.Generator
	Prompts  prompt.Builder
	Runner   *sampling.Runner

	Locks     LockFactory
	Publisher EventPublisher
	Metrics   *prometheus.AppMetrics
	Log       logging.Logger

	// TrialsPerPair is the default per-pair trial count; Analyze options
	// can override it per call.
	TrialsPerPair int
}

// Service implements the visibility pipeline operations.
type Service struct {
	deps Deps
	log  logging.Logger
}

// NewService validates the required dependencies and builds the service.
func NewService(deps Deps) (*Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, errors.Validation("visibility service requires a target repository")
	case deps.Guard == nil:
		return nil, errors.Validation("visibility service requires a URL guard")
	case deps.Fetcher == nil:
		return nil, errors.Validation("visibility service requires a page fetcher")
	case deps.Keywords == nil:
		return nil, errors.Validation("visibility service requires a keyword generator")
	case deps.Prompts == nil:
		return nil, errors.Validation("visibility service requires a prompt builder")
	case deps.Runner == nil:
		return nil, errors.Validation("visibility service requires a sampling runner")
	}
	if deps.TrialsPerPair <= 0 {
		deps.TrialsPerPair = sampling.DefaultTrialsPerPair
	}
	if deps.Log == nil {
		deps.Log = logging.NewNopLogger()
	}
	return &Service{deps: deps, log: deps.Log.Named("visibility")}, nil
}

// InitializeContent creates a target and populates its keywords and prompts
// from the site's text. Unreachable sites are not an error: fetch and
// extraction failures, and URLs that literally name an internal host, fall
// back to name-only content. A URL whose hostname merely resolves to a
// blocked address is different — that is a crafted request, and the guard's
// rejection surfaces to the caller.
func (s *Service) InitializeContent(ctx context.Context, businessName, websiteURL string) (*target.Target, error) {
	tgt, err := target.NewTarget(businessName, websiteURL)
	if err != nil {
		return nil, err
	}

	// NewTarget has already vetted the URL shape, so Parse cannot fail.
	parsed, _ := url.Parse(tgt.WebsiteURL)
	literalBlocked := parsed != nil && netguard.IsLiteralBlocked(parsed.Hostname())
	if !literalBlocked {
		if _, err := s.deps.Guard.ValidateURL(ctx, tgt.WebsiteURL); err != nil {
			return nil, err
		}
	}

	if s.deps.Locks != nil {
		lock, err := s.deps.Locks.Acquire(ctx, "init:"+tgt.WebsiteURL)
		if err == nil {
			defer func() {
				if rerr := lock.Release(context.WithoutCancel(ctx)); rerr != nil {
					s.log.Warn("init lock release failed", logging.Err(rerr))
				}
			}()
		} else if errors.IsConflict(err) {
			return nil, err
		} else {
			// Lock backend trouble must not block initialization.
			s.log.Warn("init lock unavailable", logging.Err(err))
		}
	}

	siteText := tgt.BusinessName + fallbackTextSuffix
	var metaKeywords []string
	if !literalBlocked {
		siteText, metaKeywords = s.fetchSiteText(ctx, tgt)
	}

	keywords, err := s.deps.Keywords.GenerateKeywords(ctx, tgt.BusinessName, siteText, visibility.MaxKeywords)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGeneration, "keyword generation failed")
	}
	keywords = mergeMetaKeywords(keywords, metaKeywords)
	prompts, err := s.deps.Prompts.BuildPrompts(ctx, tgt.BusinessName, keywords, visibility.MaxPrompts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGeneration, "prompt generation failed")
	}
	if err := tgt.SetGeneratedContent(keywords, prompts); err != nil {
		return nil, err
	}

	if err := s.deps.Repo.Create(ctx, tgt); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, tgt)

	s.log.Info("target initialized",
		logging.String("target_id", tgt.ID.String()),
		logging.String("business_name", tgt.BusinessName),
		logging.Int("keywords", len(tgt.Keywords)),
		logging.Int("prompts", len(tgt.Prompts)))
	return tgt, nil
}

// fetchSiteText fetches and extracts the target's page, returning its text
// and any declared meta keywords. SSRF rejection of the original URL aborts
// InitializeContent before this point (the fetcher validates first and
// NewTarget has already vetted the shape); any failure here (timeouts,
// connection errors, blocked redirects, thin pages) degrades to the
// name-seeded fallback text.
func (s *Service) fetchSiteText(ctx context.Context, tgt *target.Target) (string, []string) {
	start := time.Now()
	page, err := s.deps.Fetcher.Fetch(ctx, tgt.WebsiteURL)
	if err != nil {
		if errors.IsSSRFBlocked(err) {
			// The original URL already passed the guard, so this block
			// came from a redirect hop: the user's intent was legitimate
			// and the fallback applies.
			s.log.Warn("redirect blocked, using fallback content",
				logging.String("target_id", tgt.ID.String()))
		} else {
			s.log.Warn("fetch failed, using fallback content",
				logging.String("target_id", tgt.ID.String()), logging.Err(err))
		}
		prometheus.RecordFetch(s.deps.Metrics, "fallback", time.Since(start), 0)
		return tgt.BusinessName + fallbackTextSuffix, nil
	}
	prometheus.RecordFetch(s.deps.Metrics, "ok", time.Since(start), int64(len(page.HTML)))

	meta := extract.MetaKeywords(page.HTML)
	text := extract.Text(page.HTML, page.FinalURL)
	if len(text) < minUsefulTextLen {
		return tgt.BusinessName + fallbackTextSuffix, meta
	}
	return text, meta
}

// mergeMetaKeywords folds the page's declared meta keywords into the
// generated set, right behind the leading brand keyword. Authors curate
// them by hand, so they outrank frequency-derived tokens. The merged list
// stays deduplicated and capped.
func mergeMetaKeywords(generated []visibility.Keyword, meta []string) []visibility.Keyword {
	if len(meta) == 0 {
		return generated
	}
	merged := make([]visibility.Keyword, 0, visibility.MaxKeywords)
	seen := make(map[string]bool, visibility.MaxKeywords)
	add := func(v string) {
		if len(merged) >= visibility.MaxKeywords || v == "" || seen[v] {
			return
		}
		if len(v) < visibility.KeywordMinLen || len(v) > visibility.KeywordMaxLen {
			return
		}
		seen[v] = true
		merged = append(merged, visibility.NewKeyword(v))
	}
	if len(generated) > 0 {
		add(generated[0].Value)
	}
	for _, m := range meta {
		add(keyword.Sanitize(m))
	}
	for _, kw := range generated {
		add(kw.Value)
	}
	return merged
}

// AnalyzeOption adjusts one Analyze call.
type AnalyzeOption func(*analyzeOptions)

type analyzeOptions struct {
	trialsPerPair int
}

// WithTrialsPerPair overrides the configured per-pair trial count.
func WithTrialsPerPair(n int) AnalyzeOption {
	return func(o *analyzeOptions) { o.trialsPerPair = n }
}

// Analyze runs the sampler over every prompt/keyword pair of the stored
// target and aggregates the checks into a score. It fails only when the
// target is missing or carries nothing to sample.
func (s *Service) Analyze(ctx context.Context, targetID string, opts ...AnalyzeOption) (*visibility.VisibilityScore, error) {
	options := analyzeOptions{trialsPerPair: s.deps.TrialsPerPair}
	for _, opt := range opts {
		opt(&options)
	}

	id := common.ID(targetID)
	if err := id.Validate(); err != nil {
		return nil, errors.Validation("invalid target id").WithCause(err)
	}
	tgt, err := s.deps.Repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !tgt.Analyzable() {
		return nil, errors.Analysis("target has no analyzable content")
	}

	start := time.Now()
	checks, err := s.deps.Runner.Run(ctx, tgt.ID.String(), tgt.Prompts, tgt.Keywords, options.trialsPerPair)
	if err != nil {
		prometheus.RecordAnalysis(s.deps.Metrics, "sync", 0, 0, time.Since(start), err)
		return nil, err
	}
	score := scoring.Score(checks)
	prometheus.RecordAnalysis(s.deps.Metrics, "sync", score.VisibilityScore, score.TotalChecks, time.Since(start), nil)

	s.publishAnalysisCompleted(ctx, tgt, &score)

	s.log.Info("analysis completed",
		logging.String("target_id", tgt.ID.String()),
		logging.Int("total_checks", score.TotalChecks),
		logging.Int("occurrences", score.Occurrences),
		logging.Float64("score", score.VisibilityScore))
	return &score, nil
}

// RequestAnalysis enqueues an async analysis for the worker. It verifies
// the target exists and is analyzable so callers get the same validation
// errors the sync path gives.
func (s *Service) RequestAnalysis(ctx context.Context, targetID string) error {
	if s.deps.Publisher == nil {
		return errors.New(errors.ErrCodeServiceUnavailable, "async analysis is not configured")
	}
	id := common.ID(targetID)
	if err := id.Validate(); err != nil {
		return errors.Validation("invalid target id").WithCause(err)
	}
	tgt, err := s.deps.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !tgt.Analyzable() {
		return errors.Analysis("target has no analyzable content")
	}

	envelope, err := kafka.NewEnvelope(kafka.TopicAnalysisRequested, kafka.AnalysisRequestedPayload{
		TargetID:      tgt.ID.String(),
		TrialsPerPair: s.deps.TrialsPerPair,
	})
	if err != nil {
		return err
	}
	return s.deps.Publisher.Publish(ctx, kafka.TopicAnalysisRequested, tgt.ID.String(), envelope)
}

// GetTarget loads a target by ID.
func (s *Service) GetTarget(ctx context.Context, targetID string) (*target.Target, error) {
	id := common.ID(targetID)
	if err := id.Validate(); err != nil {
		return nil, errors.Validation("invalid target id").WithCause(err)
	}
	return s.deps.Repo.GetByID(ctx, id)
}

// ListTargets pages through stored targets, newest first.
func (s *Service) ListTargets(ctx context.Context, limit, offset int) ([]*target.Target, error) {
	return s.deps.Repo.List(ctx, limit, offset)
}

// UpdateKeywords replaces a target's keywords with user-supplied values and
// rebuilds its prompts from them, since the old prompts reference the old
// keywords.
func (s *Service) UpdateKeywords(ctx context.Context, targetID string, values []string) (*target.Target, error) {
	tgt, err := s.GetTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := tgt.UpdateKeywords(values); err != nil {
		return nil, err
	}

	prompts, err := s.deps.Prompts.BuildPrompts(ctx, tgt.BusinessName, tgt.Keywords, visibility.MaxPrompts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeGeneration, "prompt regeneration failed")
	}
	tgt.Prompts = prompts

	if err := s.deps.Repo.Update(ctx, tgt); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, tgt)
	return tgt, nil
}

// UpdatePrompts replaces a target's prompts with user-supplied values.
func (s *Service) UpdatePrompts(ctx context.Context, targetID string, values []string) (*target.Target, error) {
	tgt, err := s.GetTarget(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if err := tgt.UpdatePrompts(values); err != nil {
		return nil, err
	}
	if err := s.deps.Repo.Update(ctx, tgt); err != nil {
		return nil, err
	}
	s.publishEvents(ctx, tgt)
	return tgt, nil
}

// DeleteTarget removes a target.
func (s *Service) DeleteTarget(ctx context.Context, targetID string) error {
	id := common.ID(targetID)
	if err := id.Validate(); err != nil {
		return errors.Validation("invalid target id").WithCause(err)
	}
	return s.deps.Repo.Delete(ctx, id)
}

// publishEvents drains the aggregate's events onto the bus. Publish
// failures are logged, never surfaced: the state change already committed.
func (s *Service) publishEvents(ctx context.Context, tgt *target.Target) {
	evts := tgt.Events()
	if s.deps.Publisher == nil || len(evts) == 0 {
		return
	}
	for _, evt := range evts {
		topic, ok := kafka.TopicForEvent(evt.EventType())
		if !ok {
			s.log.Warn("no topic for event", logging.String("event_type", evt.EventType()))
			continue
		}
		envelope, err := kafka.NewEnvelope(evt.EventType(), evt)
		if err != nil {
			s.log.Warn("event encode failed", logging.Err(err))
			continue
		}
		if err := s.deps.Publisher.Publish(ctx, topic, evt.AggregateID(), envelope); err != nil {
			s.log.Warn("event publish failed",
				logging.String("event_type", evt.EventType()), logging.Err(err))
		}
	}
}

func (s *Service) publishAnalysisCompleted(ctx context.Context, tgt *target.Target, score *visibility.VisibilityScore) {
	if s.deps.Publisher == nil {
		return
	}
	envelope, err := kafka.NewEnvelope(kafka.TopicAnalysisCompleted, kafka.AnalysisCompletedPayload{
		TargetID:        tgt.ID.String(),
		TotalChecks:     score.TotalChecks,
		Occurrences:     score.Occurrences,
		VisibilityScore: score.VisibilityScore,
		AnalyzedAt:      time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		s.log.Warn("event encode failed", logging.Err(err))
		return
	}
	if err := s.deps.Publisher.Publish(ctx, kafka.TopicAnalysisCompleted, tgt.ID.String(), envelope); err != nil {
		s.log.Warn("event publish failed", logging.Err(err))
	}
}
