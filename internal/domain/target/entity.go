// Package target implements the Target bounded context: the aggregate that
// ties a business identity to the keywords and prompts its visibility is
// analyzed against.  All content invariants live here; generation and
// persistence are handled by separate layers.
package target

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/turtacn/aivis/internal/domain/keyword"
	"github.com/turtacn/aivis/internal/domain/prompt"
	"github.com/turtacn/aivis/pkg/errors"
	"github.com/turtacn/aivis/pkg/types/common"
	"github.com/turtacn/aivis/pkg/types/visibility"
)

// Business-name bounds after trimming.
const (
	NameMinLen = 2
	NameMaxLen = 80
)

// ─────────────────────────────────────────────────────────────────────────────
// Target aggregate root
// ─────────────────────────────────────────────────────────────────────────────

// Target is the aggregate root of the visibility analysis. It owns the
// keyword and prompt lists; the sampler and scorer read them per call and
// never retain references.
//
// Consumers must not modify fields directly; mutations go through the
// exported methods so invariants and domain events are maintained.
type Target struct {
	ID           common.ID            `json:"id"`
	BusinessName string               `json:"businessName"`
	WebsiteURL   string               `json:"websiteUrl"`
	Keywords     []visibility.Keyword `json:"keywords"`
	Prompts      []visibility.Prompt  `json:"prompts"`
	CreatedAt    time.Time            `json:"createdAt"`
	UpdatedAt    time.Time            `json:"updatedAt"`

	// events collects domain events until the service layer drains them.
	events []DomainEvent
}

// NewTarget creates a Target with validated identity fields and empty
// content. Keywords and prompts are attached afterwards via
// SetGeneratedContent once the initialization pipeline has run.
func NewTarget(businessName, websiteURL string) (*Target, error) {
	name := strings.TrimSpace(businessName)
	if err := ValidateBusinessName(name); err != nil {
		return nil, err
	}
	if err := ValidateWebsiteURL(websiteURL); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	return &Target{
		ID:           common.NewID(),
		BusinessName: name,
		WebsiteURL:   websiteURL,
		Keywords:     make([]visibility.Keyword, 0),
		Prompts:      make([]visibility.Prompt, 0),
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// SetGeneratedContent attaches pipeline-generated keywords and prompts and
// records the initialization event. Generated content has already passed the
// generators' own bounds; counts are still enforced defensively.
func (t *Target) SetGeneratedContent(keywords []visibility.Keyword, prompts []visibility.Prompt) error {
	if len(keywords) == 0 {
		return errors.Validation("generated content must include at least one keyword")
	}
	if len(keywords) > visibility.MaxKeywords {
		keywords = keywords[:visibility.MaxKeywords]
	}
	if len(prompts) > visibility.MaxPrompts {
		prompts = prompts[:visibility.MaxPrompts]
	}
	t.Keywords = keywords
	t.Prompts = prompts
	t.UpdatedAt = time.Now().UTC()
	t.recordEvent(NewTargetInitializedEvent(t))
	return nil
}

// UpdateKeywords replaces the keyword list with user-supplied values. The
// replacements are sanitized, validated, and marked generated=false.
func (t *Target) UpdateKeywords(values []string) error {
	cleaned, err := CleanKeywordValues(values)
	if err != nil {
		return err
	}
	keywords := make([]visibility.Keyword, len(cleaned))
	for i, v := range cleaned {
		keywords[i] = visibility.Keyword{Value: v, Generated: false}
	}
	t.Keywords = keywords
	t.UpdatedAt = time.Now().UTC()
	t.recordEvent(NewTargetKeywordsUpdatedEvent(t))
	return nil
}

// UpdatePrompts replaces the prompt list with user-supplied values, marked
// generated=false.
func (t *Target) UpdatePrompts(values []string) error {
	cleaned, err := CleanPromptValues(values)
	if err != nil {
		return err
	}
	prompts := make([]visibility.Prompt, len(cleaned))
	for i, v := range cleaned {
		prompts[i] = visibility.Prompt{Value: v, Generated: false}
	}
	t.Prompts = prompts
	t.UpdatedAt = time.Now().UTC()
	t.recordEvent(NewTargetPromptsUpdatedEvent(t))
	return nil
}

// Analyzable reports whether the target carries enough content to sample.
func (t *Target) Analyzable() bool {
	return len(t.Keywords) > 0 && len(t.Prompts) > 0
}

// Events returns the accumulated domain events and clears the buffer.
func (t *Target) Events() []DomainEvent {
	evts := t.events
	t.events = nil
	return evts
}

func (t *Target) recordEvent(evt DomainEvent) {
	t.events = append(t.events, evt)
}

// ─────────────────────────────────────────────────────────────────────────────
// Validation
// ─────────────────────────────────────────────────────────────────────────────

// ValidateBusinessName enforces the trimmed name length bounds.
func ValidateBusinessName(name string) error {
	n := len(strings.TrimSpace(name))
	if n < NameMinLen || n > NameMaxLen {
		return errors.Validation(
			fmt.Sprintf("business name must be %d-%d characters", NameMinLen, NameMaxLen))
	}
	return nil
}

// ValidateWebsiteURL enforces URL shape only: absolute, http or https, with
// a host. Reachability and SSRF policy are the guard's concern.
func ValidateWebsiteURL(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return errors.Validation("website url is not a valid URL").WithCause(err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return errors.Validation(
			fmt.Sprintf("website url scheme must be http or https, got %q", u.Scheme))
	}
	if u.Host == "" {
		return errors.Validation("website url must include a host")
	}
	return nil
}

// CleanKeywordValues sanitizes user-supplied keyword replacements and
// enforces the per-keyword and per-target bounds. At least one keyword must
// survive sanitation: a target without keywords cannot be analyzed.
func CleanKeywordValues(values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, errors.New(errors.ErrCodeKeywordInvalid, "at least one keyword is required")
	}
	if len(values) > visibility.MaxKeywords {
		return nil, errors.New(errors.ErrCodeKeywordInvalid,
			fmt.Sprintf("at most %d keywords are allowed", visibility.MaxKeywords))
	}
	cleaned := make([]string, 0, len(values))
	seen := map[string]bool{}
	for _, v := range values {
		s := keyword.Sanitize(v)
		if len(s) < visibility.KeywordMinLen || len(s) > visibility.KeywordMaxLen {
			return nil, errors.New(errors.ErrCodeKeywordInvalid,
				fmt.Sprintf("keyword %q must be %d-%d characters after sanitation",
					v, visibility.KeywordMinLen, visibility.KeywordMaxLen))
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		cleaned = append(cleaned, s)
	}
	return cleaned, nil
}

// CleanPromptValues validates user-supplied prompt replacements: trimmed,
// non-empty, within the length cap, and free of internal-host URLs.
func CleanPromptValues(values []string) ([]string, error) {
	if len(values) > visibility.MaxPrompts {
		return nil, errors.New(errors.ErrCodePromptInvalid,
			fmt.Sprintf("at most %d prompts are allowed", visibility.MaxPrompts))
	}
	cleaned := make([]string, 0, len(values))
	seen := map[string]bool{}
	for _, v := range values {
		s := strings.Join(strings.Fields(v), " ")
		if s == "" {
			return nil, errors.New(errors.ErrCodePromptInvalid, "prompt must not be empty")
		}
		if len(s) > visibility.PromptMaxLen {
			return nil, errors.New(errors.ErrCodePromptInvalid,
				fmt.Sprintf("prompt exceeds %d characters", visibility.PromptMaxLen))
		}
		if prompt.ContainsInternalHost(s) {
			return nil, errors.New(errors.ErrCodePromptInvalid,
				"prompt must not reference internal hosts")
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		cleaned = append(cleaned, s)
	}
	return cleaned, nil
}
