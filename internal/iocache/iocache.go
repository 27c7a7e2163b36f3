// Package iocache persists pipeline artifacts: the session cache that
// short-circuits repeat sessionization, and the run store that tracks
// pipeline executions together with their KPI and churn outputs.
package iocache

import (
	"sync"

	"github.com/huangsam/rewatch/internal/contract"
)

// CacheStoreManager manages the session cache and run store instances.
type CacheStoreManager struct {
	sync.RWMutex // Protects the store pointers during initialization
	sessions     contract.CacheStore
	runs         contract.RunStore
}

var _ contract.CacheManager = &CacheStoreManager{} // Compile-time check

// GetSessionStore returns the session CacheStore.
func (mgr *CacheStoreManager) GetSessionStore() contract.CacheStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.sessions
}

// GetRunStore returns the pipeline RunStore.
func (mgr *CacheStoreManager) GetRunStore() contract.RunStore {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.runs
}
