package activation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/agentx-labs/exthost/internal/extension"
	"github.com/agentx-labs/exthost/internal/manifest"
	"github.com/agentx-labs/exthost/internal/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

const pingBundle = `
self.onmessage = function (e) {
	postMessage({jsonrpc: "2.0", id: e.data.id, result: "pong"});
};`

func newHost(t *testing.T, source string) (*Host, *fakeFetcher) {
	t.Helper()
	f := &fakeFetcher{source: source}
	return NewHost(NewFactory(f), WithConcurrency(2)), f
}

func valid(id string) extension.ConfiguredExtension {
	return ext(id, &manifest.Valid{URL: "https://example.com/" + id + ".js"})
}

func TestHost_ActivateDeduplicates(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, f := newHost(t, pingBundle)
	defer h.Close()

	var wg sync.WaitGroup
	clients := make([]*rpc.Client, 8)
	for i := range clients {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			c, err := h.Activate(context.Background(), valid("one"))
			assert.NoError(t, err)
			clients[i] = c
		}()
	}
	wg.Wait()

	for _, c := range clients[1:] {
		assert.Same(t, clients[0], c)
	}
	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, []string{"one"}, h.Active())

	var got string
	require.NoError(t, clients[0].Call(context.Background(), "ping", nil, &got))
	assert.Equal(t, "pong", got)
}

func TestHost_Deactivate(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, _ := newHost(t, pingBundle)
	defer h.Close()

	c, err := h.Activate(context.Background(), valid("one"))
	require.NoError(t, err)

	require.NoError(t, h.Deactivate("one"))
	require.NoError(t, h.Deactivate("one"))
	assert.Empty(t, h.Active())
	assert.ErrorIs(t, c.Call(context.Background(), "ping", nil, nil), rpc.ErrClientClosed)
}

func TestHost_ActivateAllJoinsErrors(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, _ := newHost(t, pingBundle)
	defer h.Close()

	err := h.ActivateAll(context.Background(), []extension.ConfiguredExtension{
		valid("a"),
		ext("b", nil),
		valid("c"),
		ext("d", &manifest.Invalid{Message: "broken"}),
	})
	assert.ErrorIs(t, err, ErrNoManifest)
	assert.ErrorIs(t, err, ErrInvalidManifest)
	assert.Equal(t, []string{"a", "c"}, h.Active())
}

func TestHost_ForgetsStoppedExtension(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, _ := newHost(t, `throw new Error("dead on arrival");`)
	defer h.Close()

	_, err := h.Activate(context.Background(), valid("flaky"))
	require.NoError(t, err)

	assert.Eventually(t, func() bool { return len(h.Active()) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHost_Close(t *testing.T) {
	defer goleak.VerifyNone(t)

	h, _ := newHost(t, pingBundle)
	require.NoError(t, h.ActivateAll(context.Background(), []extension.ConfiguredExtension{valid("a"), valid("b")}))

	require.NoError(t, h.Close())
	assert.Empty(t, h.Active())

	_, err := h.Activate(context.Background(), valid("c"))
	assert.ErrorIs(t, err, ErrHostClosed)
}
