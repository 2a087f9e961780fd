package kafka

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"sync"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeWriter records written messages and can be told to fail.
type fakeWriter struct {
	mu       sync.Mutex
	messages []kafkago.Message
	fail     bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail {
		return io.ErrClosedPipe
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

// fakeReader replays a fixed message sequence then blocks on ctx.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafkago.Message
	committed []kafkago.Message
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafkago.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		msg := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return msg, nil
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafkago.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafkago.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs...)
	return nil
}

func (r *fakeReader) Close() error { return nil }

func TestEnvelope_RoundTrip(t *testing.T) {
	t.Parallel()

	env, err := NewEnvelope(TopicAnalysisRequested, AnalysisRequestedPayload{
		TargetID:      "t-1",
		TrialsPerPair: 6,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, env.EventID)
	assert.False(t, env.OccurredAt.IsZero())

	data, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, env.EventID, decoded.EventID)
	assert.Equal(t, env.EventType, decoded.EventType)
	assert.JSONEq(t, string(env.Payload), string(decoded.Payload))
}

func TestTopicForEvent(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"visibility.target.initialized":      TopicTargetInitialized,
		"visibility.target.keywords_updated": TopicTargetUpdated,
		"visibility.target.prompts_updated":  TopicTargetUpdated,
		"visibility.analysis.completed":      TopicAnalysisCompleted,
	}
	for eventType, want := range cases {
		topic, ok := TopicForEvent(eventType)
		require.True(t, ok, eventType)
		assert.Equal(t, want, topic)
	}

	_, ok := TopicForEvent("visibility.target.renamed")
	assert.False(t, ok)
}

func TestDecodeEnvelope_RejectsGarbage(t *testing.T) {
	t.Parallel()

	_, err := DecodeEnvelope([]byte("not json"))
	assert.Error(t, err)
	_, err = DecodeEnvelope([]byte(`{"payload":{}}`))
	assert.Error(t, err, "missing event_type")
}

func TestProducer_PublishAndMetrics(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{}
	p := newProducerWithWriter(w, nil)

	env, err := NewEnvelope(TopicAnalysisCompleted, AnalysisCompletedPayload{TargetID: "t-1"})
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), TopicAnalysisCompleted, "t-1", env))

	require.Len(t, w.messages, 1)
	assert.Equal(t, TopicAnalysisCompleted, w.messages[0].Topic)
	assert.Equal(t, []byte("t-1"), w.messages[0].Key)
	assert.Equal(t, int64(1), p.Metrics().MessagesSent.Load())
	assert.Equal(t, int64(0), p.Metrics().MessagesFailed.Load())
}

func TestProducer_WriteFailureCounts(t *testing.T) {
	t.Parallel()

	w := &fakeWriter{fail: true}
	p := newProducerWithWriter(w, nil)

	env, err := NewEnvelope(TopicAnalysisRequested, AnalysisRequestedPayload{TargetID: "t-1"})
	require.NoError(t, err)
	require.Error(t, p.Publish(context.Background(), TopicAnalysisRequested, "t-1", env))
	assert.Equal(t, int64(1), p.Metrics().MessagesFailed.Load())
}

func TestProducer_ClosedRejectsPublish(t *testing.T) {
	t.Parallel()

	p := newProducerWithWriter(&fakeWriter{}, nil)
	require.NoError(t, p.Close())
	require.NoError(t, p.Close(), "double close is safe")

	env, err := NewEnvelope(TopicAnalysisRequested, AnalysisRequestedPayload{TargetID: "t-1"})
	require.NoError(t, err)
	assert.Error(t, p.Publish(context.Background(), TopicAnalysisRequested, "t-1", env))
}

func TestConsumer_HandlesAndCommits(t *testing.T) {
	t.Parallel()

	env, err := NewEnvelope(TopicAnalysisRequested, AnalysisRequestedPayload{TargetID: "t-9"})
	require.NoError(t, err)
	value, err := env.Encode()
	require.NoError(t, err)

	reader := &fakeReader{queue: []kafkago.Message{{Topic: TopicAnalysisRequested, Value: value}}}

	var handled []*EventEnvelope
	ctx, cancel := context.WithCancel(context.Background())
	handler := func(_ context.Context, e *EventEnvelope) error {
		handled = append(handled, e)
		cancel()
		return nil
	}

	c := newConsumerWithReader(ConsumerConfig{Topic: TopicAnalysisRequested}, reader, handler, nil, nil)
	require.NoError(t, c.Run(ctx))

	require.Len(t, handled, 1)
	assert.Equal(t, env.EventID, handled[0].EventID)
	assert.Len(t, reader.committed, 1, "message committed after handling")
}

func TestConsumer_DeadLettersUndecodableMessage(t *testing.T) {
	t.Parallel()

	raw := []byte("%%% not json %%%")
	dlqWriter := &fakeWriter{}
	dlq := newProducerWithWriter(dlqWriter, nil)

	handler := func(context.Context, *EventEnvelope) error {
		t.Fatal("handler must not see an undecodable message")
		return nil
	}

	c := newConsumerWithReader(ConsumerConfig{
		Topic:           TopicAnalysisRequested,
		DeadLetterTopic: TopicAnalysisDLQ,
	}, &fakeReader{}, handler, dlq, nil)
	c.process(context.Background(), kafkago.Message{Value: raw, Key: []byte("t-1")})

	require.Len(t, dlqWriter.messages, 1, "garbage goes to the DLQ, not the floor")
	assert.Equal(t, TopicAnalysisDLQ, dlqWriter.messages[0].Topic)

	env, err := DecodeEnvelope(dlqWriter.messages[0].Value)
	require.NoError(t, err, "dead-letter envelope must itself be decodable")
	var payload DeadLetterPayload
	require.NoError(t, json.Unmarshal(env.Payload, &payload))
	decoded, err := base64.StdEncoding.DecodeString(payload.Raw)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded, "original bytes survive the round trip")
}

func TestConsumer_DeadLettersAfterRetries(t *testing.T) {
	t.Parallel()

	env, err := NewEnvelope(TopicAnalysisRequested, AnalysisRequestedPayload{TargetID: "t-9"})
	require.NoError(t, err)
	value, err := env.Encode()
	require.NoError(t, err)

	reader := &fakeReader{queue: []kafkago.Message{{Value: value, Key: []byte("t-9")}}}
	dlqWriter := &fakeWriter{}
	dlq := newProducerWithWriter(dlqWriter, nil)

	attempts := 0
	ctx, cancel := context.WithCancel(context.Background())
	handler := func(context.Context, *EventEnvelope) error {
		attempts++
		if attempts == 2 {
			// Cancel after the retry budget is clearly being consumed;
			// the loop still finishes this message.
			defer cancel()
		}
		return io.ErrUnexpectedEOF
	}

	c := newConsumerWithReader(ConsumerConfig{
		Topic:           TopicAnalysisRequested,
		MaxHandlerTries: 2,
		DeadLetterTopic: TopicAnalysisDLQ,
	}, reader, handler, dlq, nil)
	require.NoError(t, c.Run(ctx))

	assert.Equal(t, 2, attempts)
	require.Len(t, dlqWriter.messages, 1, "exhausted message goes to the DLQ")
	assert.Equal(t, TopicAnalysisDLQ, dlqWriter.messages[0].Topic)
}
