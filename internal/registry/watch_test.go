package registry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestWatch_ReloadsOnChange(t *testing.T) {
	defer goleak.VerifyNone(t)

	path := writeIndex(t, t.TempDir(), "extensions:\n  - id: a\n")

	ctx, cancel := context.WithCancel(context.Background())
	reloaded := make(chan *Index, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, nil, func(idx *Index, err error) {
			if err == nil {
				reloaded <- idx
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("extensions:\n  - id: a\n  - id: b\n"), 0644))

	select {
	case idx := <-reloaded:
		assert.Equal(t, 2, idx.Len())
	case <-time.After(5 * time.Second):
		t.Fatal("index was not reloaded")
	}

	cancel()
	assert.NoError(t, <-done)
}
