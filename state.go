package ngsw

import "github.com/ngsw-go/ngsw/manifest"

type stateKind int

const (
	stateUninitialized stateKind = iota
	stateActive
	stateInstalling
	stateActivating
)

// workerState is the lifecycle controller's single cell of mutable
// state. Writes happen from Install/Activate and from Fetch's lazy
// load of the Active cache while Uninitialized; otherwise Fetch only
// reads a snapshot taken under the read lock, so a concurrent fetch observes
// either the old or the new manifest, never a torn intermediate.
type workerState struct {
	kind       stateKind
	active     *manifest.Manifest
	installing *manifest.Manifest
}
