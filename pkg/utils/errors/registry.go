package errors

import (
	"fmt"
	"sync"
)

var (
	errnoRegistry = make(map[int]*Errno)
	registryMu    sync.RWMutex
)

// Register records an Errno and panics if its code is already taken.
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := errnoRegistry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	errnoRegistry[e.Code] = e
	return e
}

// Lookup returns the registered Errno for the given code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := errnoRegistry[code]
	return e, ok
}

// RegistrySize returns the number of registered error codes.
func RegistrySize() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(errnoRegistry)
}
