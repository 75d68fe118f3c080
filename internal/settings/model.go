package settings

import "context"

// SubjectKind is the layer a subject represents.
type SubjectKind string

const (
	KindGlobal SubjectKind = "global"
	KindOrg    SubjectKind = "org"
	KindUser   SubjectKind = "user"
)

// Revision is one stored version of a subject's settings.
type Revision struct {
	ID       string
	Contents map[string]any
}

// Subject is one layer of the cascade. LatestSettings is nil when the
// subject has never been configured.
type Subject struct {
	ID                  string
	Kind                SubjectKind
	Name                string
	ViewerCanAdminister bool
	LatestSettings      *Revision
}

// LastID returns the revision token for the next write, nil if the subject
// was never configured.
func (s Subject) LastID() *string {
	if s.LatestSettings == nil {
		return nil
	}
	id := s.LatestSettings.ID
	return &id
}

// Cascade is an ordered snapshot of subjects, least specific first.
type Cascade struct {
	Subjects []Subject
}

// Subject finds a subject by id.
func (c Cascade) Subject(id string) (Subject, bool) {
	for _, s := range c.Subjects {
		if s.ID == id {
			return s, true
		}
	}
	return Subject{}, false
}

// Last returns the most specific subject.
func (c Cascade) Last() (Subject, bool) {
	if len(c.Subjects) == 0 {
		return Subject{}, false
	}
	return c.Subjects[len(c.Subjects)-1], true
}

// Edit sets Value at a structural Path of strings and integers. A nil Value
// removes the key.
type Edit struct {
	Path  []any
	Value any
}

// ExtensionArgs describes one settings change. Exactly one shape is used, in
// priority order: Edit, then Enabled, then Remove.
type ExtensionArgs struct {
	ExtensionID string
	Edit        *Edit
	Enabled     *bool
	Remove      bool
}

// BackendEdit is the flattened edit sent to a Backend.
type BackendEdit struct {
	KeyPath []string
	Value   any
}

// SnapshotProvider returns the current cascade.
type SnapshotProvider interface {
	Snapshot(ctx context.Context) (Cascade, error)
}

// Backend stores settings. EditSettings must reject the write with an error
// matching ErrWriteConflict when lastID is not the subject's latest revision.
type Backend interface {
	EditSettings(ctx context.Context, subjectID string, lastID *string, edit BackendEdit) error
}

// Refresher re-reads the cascade after a committed write.
type Refresher interface {
	Refresh(ctx context.Context) error
}

// ExtensionsKey is the settings key holding per-extension enablement.
const ExtensionsKey = "extensions"
