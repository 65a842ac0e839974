// Package provider holds errors shared by the external AI provider clients.
package provider

import "errors"

// ErrRequestFailed covers any non-success or malformed response from an
// external provider. The meter never charges when a call ends with it.
var ErrRequestFailed = errors.New("provider request failed")
