// Package settings edits the layered settings cascade. A cascade is an
// ordered list of subjects (global, organization, user); each subject holds
// its latest settings revision, whose id is the optimistic-concurrency token
// for the next write.
//
// The Updater turns an explicit key-path edit or an enable/remove shorthand
// into one backend write against the revision it last saw, then refreshes
// the cascade. Conflicting writes are reported, never merged.
package settings
