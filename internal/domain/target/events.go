package target

import (
	"time"

	"github.com/turtacn/aivis/pkg/types/common"
)

// Event type names as published on the message bus.
const (
	EventTypeTargetInitialized     = "visibility.target.initialized"
	EventTypeTargetKeywordsUpdated = "visibility.target.keywords_updated"
	EventTypeTargetPromptsUpdated  = "visibility.target.prompts_updated"
	EventTypeAnalysisCompleted     = "visibility.analysis.completed"
)

// DomainEvent is implemented by every event the Target aggregate records.
type DomainEvent interface {
	EventID() string
	EventType() string
	OccurredAt() time.Time
	AggregateID() string
}

// TargetInitializedEvent is recorded when generated content is first
// attached to a target.
type TargetInitializedEvent struct {
	common.BaseEvent
	BusinessName string `json:"business_name"`
	WebsiteURL   string `json:"website_url"`
	KeywordCount int    `json:"keyword_count"`
	PromptCount  int    `json:"prompt_count"`
}

func NewTargetInitializedEvent(t *Target) *TargetInitializedEvent {
	return &TargetInitializedEvent{
		BaseEvent:    common.NewBaseEvent(t.ID.String()),
		BusinessName: t.BusinessName,
		WebsiteURL:   t.WebsiteURL,
		KeywordCount: len(t.Keywords),
		PromptCount:  len(t.Prompts),
	}
}

func (e *TargetInitializedEvent) EventType() string { return EventTypeTargetInitialized }

// TargetKeywordsUpdatedEvent is recorded when a user replaces the keyword
// list.
type TargetKeywordsUpdatedEvent struct {
	common.BaseEvent
	KeywordCount int `json:"keyword_count"`
}

func NewTargetKeywordsUpdatedEvent(t *Target) *TargetKeywordsUpdatedEvent {
	return &TargetKeywordsUpdatedEvent{
		BaseEvent:    common.NewBaseEvent(t.ID.String()),
		KeywordCount: len(t.Keywords),
	}
}

func (e *TargetKeywordsUpdatedEvent) EventType() string { return EventTypeTargetKeywordsUpdated }

// TargetPromptsUpdatedEvent is recorded when a user replaces the prompt
// list.
type TargetPromptsUpdatedEvent struct {
	common.BaseEvent
	PromptCount int `json:"prompt_count"`
}

func NewTargetPromptsUpdatedEvent(t *Target) *TargetPromptsUpdatedEvent {
	return &TargetPromptsUpdatedEvent{
		BaseEvent:   common.NewBaseEvent(t.ID.String()),
		PromptCount: len(t.Prompts),
	}
}

func (e *TargetPromptsUpdatedEvent) EventType() string { return EventTypeTargetPromptsUpdated }

// AnalysisCompletedEvent is published by the application service after a
// visibility score has been computed.
type AnalysisCompletedEvent struct {
	common.BaseEvent
	BusinessName    string  `json:"business_name"`
	TotalChecks     int     `json:"total_checks"`
	Occurrences     int     `json:"occurrences"`
	VisibilityScore float64 `json:"visibility_score"`
}

func NewAnalysisCompletedEvent(t *Target, totalChecks, occurrences int, score float64) *AnalysisCompletedEvent {
	return &AnalysisCompletedEvent{
		BaseEvent:       common.NewBaseEvent(t.ID.String()),
		BusinessName:    t.BusinessName,
		TotalChecks:     totalChecks,
		Occurrences:     occurrences,
		VisibilityScore: score,
	}
}

func (e *AnalysisCompletedEvent) EventType() string { return EventTypeAnalysisCompleted }
