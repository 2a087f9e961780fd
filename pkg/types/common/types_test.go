package common_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/turtacn/aivis/pkg/types/common"
)

func TestID_Validate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		id      common.ID
		wantErr bool
	}{
		{"fresh id is valid", common.NewID(), false},
		{"empty id rejected", common.ID(""), true},
		{"non-uuid rejected", common.ID("not-a-uuid"), true},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.id.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestTimestamp_JSONRoundTrip(t *testing.T) {
	t.Parallel()

	orig := common.Timestamp(time.Date(2025, 6, 1, 12, 30, 45, 0, time.UTC))
	raw, err := json.Marshal(orig)
	require.NoError(t, err)
	assert.Equal(t, `"2025-06-01T12:30:45Z"`, string(raw))

	var decoded common.Timestamp
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.True(t, orig.Time().Equal(decoded.Time()))
}

func TestTimestamp_UnmarshalAcceptsSecondPrecision(t *testing.T) {
	t.Parallel()

	var ts common.Timestamp
	require.NoError(t, json.Unmarshal([]byte(`"2025-06-01T12:30:45+02:00"`), &ts))
	assert.Equal(t, 10, ts.Time().UTC().Hour())
}

func TestNewBaseEvent(t *testing.T) {
	t.Parallel()

	before := time.Now().UTC()
	ev := common.NewBaseEvent("agg-123")

	assert.NotEmpty(t, ev.EventID())
	assert.Equal(t, "agg-123", ev.AggregateID())
	assert.False(t, ev.OccurredAt().Before(before.Add(-time.Second)))
	assert.False(t, ev.OccurredAt().After(time.Now().UTC().Add(time.Second)))
}
