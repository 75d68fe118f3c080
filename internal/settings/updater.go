package settings

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// Updater submits settings edits against the cascade snapshot current at
// call time.
type Updater struct {
	snapshots SnapshotProvider
	backend   Backend
	refresher Refresher
	logger    *zap.Logger
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithRefresher sets the refresh signal fired after a committed write.
func WithRefresher(r Refresher) UpdaterOption {
	return func(u *Updater) {
		u.refresher = r
	}
}

// WithLogger sets the updater logger.
func WithLogger(l *zap.Logger) UpdaterOption {
	return func(u *Updater) {
		if l != nil {
			u.logger = l
		}
	}
}

// NewUpdater returns an Updater reading snapshots from snapshots and writing
// through backend. When snapshots also implements Refresher it is refreshed
// after each write unless WithRefresher says otherwise.
func NewUpdater(snapshots SnapshotProvider, backend Backend, opts ...UpdaterOption) *Updater {
	u := &Updater{
		snapshots: snapshots,
		backend:   backend,
		logger:    zap.NewNop(),
	}
	if r, ok := snapshots.(Refresher); ok {
		u.refresher = r
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// UpdateSettings applies args to the subject's settings. The write carries
// the subject's latest revision id from the current snapshot; a backend that
// has moved on rejects it with WriteConflict. On success the cascade is
// refreshed; a refresh failure is returned even though the write committed.
func (u *Updater) UpdateSettings(ctx context.Context, subjectID string, args ExtensionArgs) error {
	snap, err := u.snapshots.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reading settings cascade: %w", err)
	}
	subject, ok := snap.Subject(subjectID)
	if !ok {
		return &Error{Kind: UnknownSubject, SubjectID: subjectID}
	}
	lastID := subject.LastID()

	// An empty request fails here, before the backend sees anything.
	edit, err := buildEdit(args)
	if err != nil {
		return err
	}

	logger := u.logger.With(zap.String("subject", subjectID), zap.Strings("key_path", edit.KeyPath))
	if lastID != nil {
		logger = logger.With(zap.String("last_id", *lastID))
	}

	if err := u.backend.EditSettings(ctx, subjectID, lastID, edit); err != nil {
		if errors.Is(err, ErrWriteConflict) {
			logger.Info("settings write rejected as stale")
			return &Error{Kind: WriteConflict, SubjectID: subjectID, Err: err}
		}
		logger.Warn("settings write failed", zap.Error(err))
		return &Error{Kind: WriteFailed, SubjectID: subjectID, Err: err}
	}
	logger.Debug("settings write committed")

	if u.refresher == nil {
		return nil
	}
	if err := u.refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("settings saved, refreshing cascade: %w", err)
	}
	return nil
}

// UpdateUserExtensionSettings applies args to the most specific subject of
// the current cascade.
func (u *Updater) UpdateUserExtensionSettings(ctx context.Context, args ExtensionArgs) error {
	snap, err := u.snapshots.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("reading settings cascade: %w", err)
	}
	subject, ok := snap.Last()
	if !ok {
		return &Error{Kind: UnknownSubject}
	}
	return u.UpdateSettings(ctx, subject.ID, args)
}

func buildEdit(args ExtensionArgs) (BackendEdit, error) {
	switch {
	case args.Edit != nil:
		keyPath, err := ToKeyPath(args.Edit.Path)
		if err != nil {
			return BackendEdit{}, err
		}
		return BackendEdit{KeyPath: keyPath, Value: args.Edit.Value}, nil
	case args.Enabled != nil:
		if args.ExtensionID == "" {
			return BackendEdit{}, &Error{Kind: NoEdit, Err: errors.New("enabled requires an extension id")}
		}
		return BackendEdit{KeyPath: []string{ExtensionsKey, args.ExtensionID}, Value: *args.Enabled}, nil
	case args.Remove:
		if args.ExtensionID == "" {
			return BackendEdit{}, &Error{Kind: NoEdit, Err: errors.New("remove requires an extension id")}
		}
		return BackendEdit{KeyPath: []string{ExtensionsKey, args.ExtensionID}, Value: nil}, nil
	default:
		return BackendEdit{}, &Error{Kind: NoEdit}
	}
}
