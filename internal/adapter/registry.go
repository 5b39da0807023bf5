package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
)

// ConnDescriptor describes the storage connection behind a request.
// ConnectorType is empty for non-persisted data, which deliberately
// selects the in-memory fallback.
type ConnDescriptor struct {
	// ConnectorType names the storage connector ("postgres",
	// "sqlite", "mysql", "elasticsearch"), or "" when the entity is
	// not backed by a store.
	ConnectorType string

	// ConnectionID keys adapter and capability caching. Connections
	// with the same ID share one detected adapter instance.
	ConnectionID string

	// DB is the open handle for relational connectors; nil otherwise.
	DB *sql.DB
}

// Factory constructs an adapter for a connection, running whatever
// feature detection the backend needs.
type Factory func(ctx context.Context, desc ConnDescriptor) (Adapter, error)

// Registry selects and caches adapters. The selection cascade, first
// match wins:
//
//  1. explicit per-request override by adapter ID
//  2. static mapping from connector type to adapter
//  3. the in-memory fallback when no connector is present
//
// The fallback is a deliberate default for filtering non-persisted
// data, not an error path. A present but unmapped connector type is an
// AdapterSelectionError.
//
// The registry is built once from explicit configuration and injected;
// there is no ambient global instance.
type Registry struct {
	mu         sync.RWMutex
	byConnType map[string]Factory
	byID       map[string]Factory
	fallbackID string
	instances  map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byConnType: make(map[string]Factory),
		byID:       make(map[string]Factory),
		instances:  make(map[string]Adapter),
	}
}

// Register binds an adapter ID and the connector type it serves to a
// factory. An empty connectorType registers the adapter for override
// selection only.
func (r *Registry) Register(adapterID, connectorType string, f Factory) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byID[adapterID] = f
	if connectorType != "" {
		r.byConnType[connectorType] = f
	}
	return r
}

// SetFallback names the adapter used when no connector is present.
func (r *Registry) SetFallback(adapterID string) *Registry {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fallbackID = adapterID
	return r
}

// Select resolves an adapter for the connection, applying the cascade.
// override is the per-request forced adapter ID, or "".
//
// Constructed adapters are cached per (adapter, connection) pair so
// detection probes run once per connection, not per request.
func (r *Registry) Select(ctx context.Context, desc ConnDescriptor, override string) (Adapter, error) {
	factory, adapterID, err := r.resolve(desc, override)
	if err != nil {
		return nil, err
	}

	key := adapterID + "\x00" + desc.ConnectionID

	r.mu.RLock()
	inst, ok := r.instances[key]
	r.mu.RUnlock()
	if ok {
		return inst, nil
	}

	inst, err = factory(ctx, desc)
	if err != nil {
		return nil, fmt.Errorf("construct adapter %s: %w", adapterID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.instances[key]; ok {
		return existing, nil
	}
	r.instances[key] = inst
	return inst, nil
}

// Invalidate drops cached adapter instances for a connection, forcing
// re-detection on next use (e.g. after an extension was installed).
func (r *Registry) Invalidate(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	suffix := "\x00" + connectionID
	for key := range r.instances {
		if len(key) >= len(suffix) && key[len(key)-len(suffix):] == suffix {
			delete(r.instances, key)
		}
	}
}

func (r *Registry) resolve(desc ConnDescriptor, override string) (Factory, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if override != "" {
		f, ok := r.byID[override]
		if !ok {
			return nil, "", &SelectionError{Override: override, Reason: "no adapter registered under that ID"}
		}
		return f, override, nil
	}

	if desc.ConnectorType != "" {
		f, ok := r.byConnType[desc.ConnectorType]
		if !ok {
			return nil, "", &SelectionError{ConnectorType: desc.ConnectorType, Reason: "no adapter mapped to connector type"}
		}
		return f, desc.ConnectorType, nil
	}

	if r.fallbackID == "" {
		return nil, "", &SelectionError{Reason: "no connector present and no fallback configured"}
	}
	f, ok := r.byID[r.fallbackID]
	if !ok {
		return nil, "", &SelectionError{Reason: fmt.Sprintf("fallback adapter %q not registered", r.fallbackID)}
	}
	return f, r.fallbackID, nil
}

// SelectionError reports that no adapter could be resolved. This is
// fatal for the request, and distinct from the deliberate in-memory
// fallback taken when no connector exists at all.
type SelectionError struct {
	Override      string
	ConnectorType string
	Reason        string
}

func (e *SelectionError) Error() string {
	switch {
	case e.Override != "":
		return fmt.Sprintf("adapter selection: override %q: %s", e.Override, e.Reason)
	case e.ConnectorType != "":
		return fmt.Sprintf("adapter selection: connector %q: %s", e.ConnectorType, e.Reason)
	default:
		return "adapter selection: " + e.Reason
	}
}
