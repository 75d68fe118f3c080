package settings

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedProvider(t *testing.T) {
	src := &staticProvider{cascade: testCascade()}
	p := NewCachedProvider(src)
	ctx := context.Background()

	var seen []Cascade
	p.Subscribe(func(c Cascade) { seen = append(seen, c) })

	c, err := p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, c.Subjects, 3)
	_, err = p.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, src.reads, "snapshot is cached")

	require.NoError(t, p.Refresh(ctx))
	assert.Equal(t, 2, src.reads)
	assert.Len(t, seen, 2)

	src.err = errors.New("offline")
	assert.Error(t, p.Refresh(ctx))
	c, err = p.Snapshot(ctx)
	require.NoError(t, err, "previous snapshot survives a failed refresh")
	assert.Len(t, c.Subjects, 3)
}

// revProvider serves the backend's current revision for one subject.
type revProvider struct {
	backend *memBackend
}

func (p revProvider) Snapshot(context.Context) (Cascade, error) {
	p.backend.mu.Lock()
	defer p.backend.mu.Unlock()
	s := Subject{ID: "user", Kind: KindUser}
	if id, ok := p.backend.latest["user"]; ok {
		s.LatestSettings = &Revision{ID: id}
	}
	return Cascade{Subjects: []Subject{s}}, nil
}

func TestSubjectQueue_SerializesWrites(t *testing.T) {
	backend := newMemBackend(nil)
	cached := NewCachedProvider(revProvider{backend})
	q := NewSubjectQueue(NewUpdater(cached, backend))

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = q.UpdateSettings(context.Background(), "user", ExtensionArgs{ExtensionID: "foo", Enabled: ptr(i%2 == 0)})
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Len(t, backend.Calls(), 10)
}

func TestSubjectQueue_ContextCanceled(t *testing.T) {
	backend := newMemBackend(nil)
	q := NewSubjectQueue(NewUpdater(NewCachedProvider(revProvider{backend}), backend))

	slot := q.slot("user")
	slot <- struct{}{}
	defer func() { <-slot }()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.UpdateSettings(ctx, "user", ExtensionArgs{ExtensionID: "foo", Remove: true})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, backend.Calls())
}
