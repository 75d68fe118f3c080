// Package config manages host settings stored at ~/.exthost/config.yaml.
// Values can be overridden through EXTHOST_* environment variables, e.g.
// EXTHOST_FETCH_MAX_BYTES or EXTHOST_LOG_LEVEL.
package config
