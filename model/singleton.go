package model

import "sync"

// Process-wide registry and its initialization guard. The serve path
// injects the configured registry via InitGlobal; components built
// without one (one-off tools, tests) fall back to the defaults.
var (
	globalRegistry *Registry
	globalOnce     sync.Once
)

// Global returns the process-wide registry, creating the default one on
// first use if InitGlobal was never called.
func Global() *Registry {
	globalOnce.Do(func() {
		globalRegistry = NewDefaultRegistry()
	})
	return globalRegistry
}

// InitGlobal installs the configured registry as the process-wide one.
// Only the first call (to this or Global) has any effect.
func InitGlobal(r *Registry) {
	globalOnce.Do(func() {
		globalRegistry = r
	})
}

// ResetGlobal clears the process-wide registry. Not thread-safe; tests
// only.
func ResetGlobal() {
	globalOnce = sync.Once{}
	globalRegistry = nil
}
