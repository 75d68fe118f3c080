package settings

import (
	"context"
	"sync"
)

// SubjectQueue serializes updates per subject so each write sees the
// revision committed by the one before it. The Updater must refresh its
// snapshot provider after writes for this to hold.
type SubjectQueue struct {
	updater *Updater

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// NewSubjectQueue wraps u.
func NewSubjectQueue(u *Updater) *SubjectQueue {
	return &SubjectQueue{updater: u, slots: make(map[string]chan struct{})}
}

// UpdateSettings waits for earlier updates to subjectID, then applies args.
func (q *SubjectQueue) UpdateSettings(ctx context.Context, subjectID string, args ExtensionArgs) error {
	slot := q.slot(subjectID)
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-slot }()
	return q.updater.UpdateSettings(ctx, subjectID, args)
}

func (q *SubjectQueue) slot(subjectID string) chan struct{} {
	q.mu.Lock()
	defer q.mu.Unlock()
	s, ok := q.slots[subjectID]
	if !ok {
		s = make(chan struct{}, 1)
		q.slots[subjectID] = s
	}
	return s
}
