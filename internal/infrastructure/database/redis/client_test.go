package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_RequiresAddr(t *testing.T) {
	t.Parallel()

	_, err := NewClient(context.Background(), Config{}, nil)
	require.Error(t, err)
}

func TestNewClient_UnreachableAddr(t *testing.T) {
	t.Parallel()

	// Reserved TEST-NET-1 address: connection refused or timeout, never a
	// real Redis.
	_, err := NewClient(context.Background(), Config{
		Addr:        "192.0.2.1:6379",
		DialTimeout: 100 * time.Millisecond,
	}, nil)
	require.Error(t, err)
}

func TestClient_Key(t *testing.T) {
	t.Parallel()

	c := &Client{prefix: "aivis:"}
	assert.Equal(t, "aivis:page:abc", c.Key("page", "abc"))
	assert.Equal(t, "aivis:lock", c.Key("lock"))
}

func TestJSONSerializer_RoundTrip(t *testing.T) {
	t.Parallel()

	type payload struct {
		URL  string `json:"url"`
		Hits int    `json:"hits"`
	}
	s := jsonSerializer{}
	data, err := s.Marshal(payload{URL: "https://acme.example.com", Hits: 3})
	require.NoError(t, err)

	var out payload
	require.NoError(t, s.Unmarshal(data, &out))
	assert.Equal(t, payload{URL: "https://acme.example.com", Hits: 3}, out)
}
