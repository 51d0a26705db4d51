// Package snapshot defines the per-domain snapshot types the agent
// synchronizes and the structural comparison used for change detection.
//
// A snapshot is a full point-in-time value for one domain. Collectors
// produce them; the state store replaces them wholesale and never mutates
// one in place.
//
//	changed := !snapshot.Equal(snapshot.Containers, stored, fresh)
package snapshot
