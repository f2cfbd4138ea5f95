package token

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type recordingHandler struct {
	matched         []string
	expiredClients  []string
	expiredConnects []string
}

func (h *recordingHandler) TokenMatched(client string, payload string) {
	h.matched = append(h.matched, client+"+"+payload)
}

func (h *recordingHandler) DeletePendingClient(client string) {
	h.expiredClients = append(h.expiredClients, client)
}

func (h *recordingHandler) DeletePendingConnect(payload string) {
	h.expiredConnects = append(h.expiredConnects, payload)
}

func TestCollectorMatchesClientFirst(t *testing.T) {
	h := &recordingHandler{}
	c := NewCollector[string, string](h, time.Minute)

	c.AddPendingClient("tok", "client")
	require.Empty(t, h.matched)

	c.AddPendingConnect("tok", "payload")
	require.Equal(t, []string{"client+payload"}, h.matched)

	clients, connects := c.PendingCounts()
	require.Zero(t, clients)
	require.Zero(t, connects)
}

func TestCollectorMatchesConnectFirst(t *testing.T) {
	h := &recordingHandler{}
	c := NewCollector[string, string](h, time.Minute)

	c.AddPendingConnect("tok", "payload")
	c.AddPendingClient("tok", "client")
	require.Equal(t, []string{"client+payload"}, h.matched)
}

func TestCollectorMatchesAtMostOnce(t *testing.T) {
	h := &recordingHandler{}
	c := NewCollector[string, string](h, time.Minute)

	c.AddPendingConnect("tok", "payload")
	c.AddPendingClient("tok", "first")
	c.AddPendingClient("tok", "second")

	require.Equal(t, []string{"first+payload"}, h.matched)
	clients, _ := c.PendingCounts()
	require.Equal(t, 1, clients, "second client stays parked")
}

func TestCollectorDistinctTokensDoNotMatch(t *testing.T) {
	h := &recordingHandler{}
	c := NewCollector[string, string](h, time.Minute)

	c.AddPendingClient("a", "client")
	c.AddPendingConnect("b", "payload")
	require.Empty(t, h.matched)

	clients, connects := c.PendingCounts()
	require.Equal(t, 1, clients)
	require.Equal(t, 1, connects)
}

func TestCollectorRemovePendingClient(t *testing.T) {
	h := &recordingHandler{}
	c := NewCollector[string, string](h, time.Minute)

	c.AddPendingClient("tok", "client")
	require.True(t, c.RemovePendingClient(func(s string) bool { return s == "client" }))
	require.False(t, c.RemovePendingClient(func(s string) bool { return s == "client" }))

	// The withdrawn client must not match a late payload.
	c.AddPendingConnect("tok", "payload")
	require.Empty(t, h.matched)
}

func TestCollectorSweepExpiresBothSides(t *testing.T) {
	h := &recordingHandler{}
	c := NewCollector[string, string](h, 10*time.Millisecond)

	c.AddPendingClient("a", "client")
	c.AddPendingConnect("b", "payload")

	c.sweep(time.Now().Add(time.Second))

	require.Equal(t, []string{"client"}, h.expiredClients)
	require.Equal(t, []string{"payload"}, h.expiredConnects)
	require.Empty(t, h.matched)

	clients, connects := c.PendingCounts()
	require.Zero(t, clients)
	require.Zero(t, connects)
}

func TestCollectorSweepKeepsFreshEntries(t *testing.T) {
	h := &recordingHandler{}
	c := NewCollector[string, string](h, time.Minute)

	c.AddPendingClient("a", "client")
	c.sweep(time.Now())

	require.Empty(t, h.expiredClients)
	clients, _ := c.PendingCounts()
	require.Equal(t, 1, clients)
}

func TestDispenserTokens(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 100; i++ {
		tok := New()
		require.Len(t, tok, Length)
		_, dup := seen[tok]
		require.False(t, dup, "token repeated")
		seen[tok] = struct{}{}
	}
}
