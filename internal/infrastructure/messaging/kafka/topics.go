// Package kafka carries the async analysis path: the API publishes
// analysis requests, the worker consumes them, runs the pipeline, and
// publishes the completed scores. Domain events from the target aggregate
// ride the same producer.
package kafka

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/turtacn/aivis/pkg/errors"
)

// Topic names. Dotted, lowercase, singular domain prefix.
const (
	TopicAnalysisRequested = "visibility.analysis.requested"
	TopicAnalysisCompleted = "visibility.analysis.completed"
	TopicTargetInitialized = "visibility.target.initialized"
	TopicTargetUpdated     = "visibility.target.updated"
	TopicAnalysisDLQ       = "visibility.analysis.dlq"
)

// AllTopics lists every topic the service touches, for provisioning.
func AllTopics() []string {
	return []string{
		TopicAnalysisRequested,
		TopicAnalysisCompleted,
		TopicTargetInitialized,
		TopicTargetUpdated,
		TopicAnalysisDLQ,
	}
}

// TopicForEvent maps a domain event type to the topic it rides on.
// Keyword and prompt changes share the target-updated topic.
func TopicForEvent(eventType string) (string, bool) {
	switch eventType {
	case "visibility.target.initialized":
		return TopicTargetInitialized, true
	case "visibility.target.keywords_updated", "visibility.target.prompts_updated":
		return TopicTargetUpdated, true
	case "visibility.analysis.completed":
		return TopicAnalysisCompleted, true
	default:
		return "", false
	}
}

// EventEnvelope is the wire format for every message the service publishes.
// Payload holds the event-specific JSON document.
type EventEnvelope struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload"`
}

// NewEnvelope wraps a payload document in a stamped envelope.
func NewEnvelope(eventType string, payload interface{}) (*EventEnvelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode event payload")
	}
	return &EventEnvelope{
		EventID:    uuid.New().String(),
		EventType:  eventType,
		OccurredAt: time.Now().UTC(),
		Payload:    data,
	}, nil
}

// Encode renders the envelope as the message value.
func (e *EventEnvelope) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "encode event envelope")
	}
	return data, nil
}

// DecodeEnvelope parses a message value back into an envelope.
func DecodeEnvelope(data []byte) (*EventEnvelope, error) {
	var e EventEnvelope
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeSerialization, "decode event envelope")
	}
	if e.EventType == "" {
		return nil, errors.New(errors.ErrCodeSerialization, "event envelope missing event_type")
	}
	return &e, nil
}

// AnalysisRequestedPayload asks the worker to analyze a target.
type AnalysisRequestedPayload struct {
	TargetID      string `json:"target_id"`
	TrialsPerPair int    `json:"trials_per_pair,omitempty"`
}

// DeadLetterPayload wraps an unprocessable message value. The original
// bytes ride base64-encoded so the dead-letter envelope stays valid JSON
// no matter what the message contained.
type DeadLetterPayload struct {
	Raw string `json:"raw"`
}

// AnalysisCompletedPayload reports a finished analysis.
type AnalysisCompletedPayload struct {
	TargetID        string  `json:"target_id"`
	TotalChecks     int     `json:"total_checks"`
	Occurrences     int     `json:"occurrences"`
	VisibilityScore float64 `json:"visibility_score"`
	AnalyzedAt      string  `json:"analyzed_at"`
}
