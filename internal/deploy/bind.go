package deploy

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Tensor is an opaque handle to externally managed tensor storage. The
// binder only carries it between the execution context and the device
// manager.
type Tensor interface{}

// Context exposes the placeholder-to-tensor bindings of one execution
// context. Tensor returns nil for a placeholder the context has not bound.
type Context interface {
	Tensor(placeholder string) Tensor
}

// DeviceManager is the generic device handle carried by a ContextBinding.
// A manager owned by this backend must additionally implement Binder;
// anything else is rejected at bind time.
type DeviceManager interface{}

// Binder is the backend-specific device manager surface the bind operation
// drives: usage aggregation before binding, then one BindContext call per
// owned DAG node.
type Binder interface {
	AddPlaceholderUsage(networkName string, usage UsageMap)
	BindContext(networkName string, ctx Context, usage UsageMap) error
}

// PlaceholderUsage aggregates how one named placeholder is used across
// every network of a bind operation. Built fresh per bind; not persisted.
type PlaceholderUsage struct {
	NumWriters int
	NumReaders int

	// DisableP2P and DisableDRT switch off the peer-to-peer and
	// direct-remote-transfer fast paths for this placeholder.
	DisableP2P bool
	DisableDRT bool

	// Tensor is refreshed from the owning execution context immediately
	// before each bind call.
	Tensor Tensor
}

// UsageMap keys aggregated placeholder usage by placeholder name.
type UsageMap map[string]*PlaceholderUsage

// ContextBinding pairs one compiled network with the execution context and
// device manager it runs under.
type ContextBinding struct {
	NetworkName string
	Context     Context
	Device      DeviceManager
}

// BindContexts binds every DAG node owned by backendName to its device.
//
// Placeholder usage is aggregated across all bindings first; a placeholder
// with more than one writer is a concurrent-write hazard and fails the
// whole operation before any bind call is issued. Nodes owned by other
// backends are skipped, as are owned nodes with no matching binding. Any
// bind failure is fatal.
func BindContexts(backendName string, bindings []ContextBinding, root *DAGNode, enableP2P, enableDRT bool) error {
	type boundNetwork struct {
		ctx    Context
		binder Binder
	}
	networks := make(map[string]boundNetwork, len(bindings))

	usage := make(UsageMap)
	for _, cb := range bindings {
		b, ok := cb.Device.(Binder)
		if !ok {
			return errors.Errorf("network %s: invalid device manager %T", cb.NetworkName, cb.Device)
		}
		b.AddPlaceholderUsage(cb.NetworkName, usage)
		networks[cb.NetworkName] = boundNetwork{ctx: cb.Context, binder: b}
	}

	names := make([]string, 0, len(usage))
	for name := range usage {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		u := usage[name]
		if u.NumWriters >= 2 {
			return errors.Errorf("placeholder %s has %d writers; concurrent writes are not supported", name, u.NumWriters)
		}
		u.DisableP2P = !enableP2P
		u.DisableDRT = !enableDRT
	}

	for _, dagNode := range PostOrder(root) {
		if dagNode.BackendName != backendName {
			continue
		}
		nw, ok := networks[dagNode.Name]
		if !ok {
			logrus.Debugf("no binding for DAG node %s", dagNode.Name)
			continue
		}

		for _, name := range names {
			usage[name].Tensor = nw.ctx.Tensor(name)
		}
		if err := nw.binder.BindContext(dagNode.Name, nw.ctx, usage); err != nil {
			return errors.Wrapf(err, "binding context for %s", dagNode.Name)
		}
	}
	return nil
}
