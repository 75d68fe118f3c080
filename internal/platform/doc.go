// Package platform hides the filesystem differences between Unix and Windows
// that the host cares about: owner-only permissions for files holding
// settings.
package platform
