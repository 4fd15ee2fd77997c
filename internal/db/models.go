// Package db provides SQLite storage for teleprompter settings.
package db

import "time"

// Setting keys the application stores.
const (
	KeyBackendURL = "backend_url"
	KeyLocale     = "locale"
	KeyDevice     = "device"
)

// Keys lists every key the store accepts.
var Keys = []string{KeyBackendURL, KeyLocale, KeyDevice}

// Setting is one stored key/value pair.
type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
