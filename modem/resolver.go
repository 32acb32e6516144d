package modem

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// Resolver determines which device node currently represents the modem's AT
// interface. USB composite modems expose several tty nodes and the kernel
// may rename them on re-enumeration, so the Resolver remembers the physical
// interface identity of the node it last opened.
type Resolver struct {
	preferred string
	topo      Topology
	logger    *slog.Logger

	mu       sync.RWMutex
	identity string
	suffix   string
}

// NewResolver creates a Resolver preferring path and scanning for suffix
// when no identity is remembered yet.
func NewResolver(path, suffix string, topo Topology, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Resolver{
		preferred: path,
		topo:      topo,
		suffix:    suffix,
		logger:    logger,
	}
}

// Resolve returns the device node to open. First match wins:
//
//  1. the preferred path, if it exists;
//  2. the first existing node advertised under the remembered identity;
//  3. the first candidate node whose identity ends with the expected suffix.
//
// Matches found by 2 or 3 update the remembered identity and suffix.
func (r *Resolver) Resolve() (string, error) {
	if r.preferred != "" && r.topo.Exists(r.preferred) {
		return r.preferred, nil
	}

	identity, suffix := r.Identity()

	if identity != "" {
		nodes, err := r.topo.InterfaceNodes(identity)
		if err != nil {
			r.logger.Debug("Failed to list interface nodes", "interface", identity, "error", err)
		}
		for _, node := range nodes {
			if r.topo.Exists(node) {
				r.remember(identity)
				r.logger.Info("Resolved interface", "interface", identity, "device", node)
				return node, nil
			}
		}
	}

	if suffix != "" {
		candidates, err := r.topo.Candidates()
		if err != nil {
			return "", fmt.Errorf("%w: list candidates: %w", ErrDeviceNotFound, err)
		}
		for _, dev := range candidates {
			id, ok := r.topo.InterfaceID(dev)
			if !ok || !strings.HasSuffix(id, suffix) {
				continue
			}
			r.remember(id)
			r.logger.Info("Auto-detected interface", "interface", id, "device", dev, "suffix", suffix)
			return dev, nil
		}
	}

	return "", fmt.Errorf("%w: %s not present and interface %q (suffix %q) could not be resolved",
		ErrDeviceNotFound, r.preferred, identity, suffix)
}

// Remember records the interface identity of a device that was just opened.
// Devices without a USB interface identity leave the remembered state
// untouched; nothing else ever clears it.
func (r *Resolver) Remember(device string) {
	id, ok := r.topo.InterfaceID(device)
	if !ok {
		return
	}
	r.remember(id)
	r.logger.Debug("Remembered interface", "interface", id, "device", device)
}

func (r *Resolver) remember(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.identity = id
	if i := strings.LastIndex(id, ":"); i >= 0 {
		r.suffix = id[i:]
	}
}

// Identity returns the remembered interface identity and the current
// expected suffix.
func (r *Resolver) Identity() (string, string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.identity, r.suffix
}

// Preferred returns the configured device path.
func (r *Resolver) Preferred() string {
	return r.preferred
}
