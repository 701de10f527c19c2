// Package registry defines the format registry mechanism.
//
// The default implementation always returns a format engine: when the format
// is unknown, the engine fails every request with an explicit error so that
// callers do not need to check for existence.
package registry

import "go.dedis.ch/duet/serde"

// Registry is an interface to register and get format engines for a specific
// format.
type Registry interface {
	// Register takes a format and its engine and it registers them so that the
	// engine can be looked up later.
	Register(serde.Format, serde.FormatEngine)

	// Get returns the engine associated with the format.
	Get(serde.Format) serde.FormatEngine
}
