// Package sqlstore keeps settings subjects and their revision history in a
// SQLite database. A write is accepted only when the caller's last known
// revision id is still the subject's latest, so concurrent writers holding
// the same stale snapshot cannot overwrite each other.
package sqlstore
