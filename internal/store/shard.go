// Package store implements the sharded data/user stores and the
// condition registry that backs get-when.
package store

import "sync"

// DataShard is one partition of the key space. All put/get/multi_put/
// multi_get/get_when operations route to a shard by key hash and take its
// lock; the shard's write lock also serializes condition registration and
// signalling, per §4.4.
type DataShard struct {
	mu         sync.RWMutex
	data       map[string][]byte
	conditions map[string]*conditionSlot
}

func newDataShard() *DataShard {
	return &DataShard{
		data:       make(map[string][]byte),
		conditions: make(map[string]*conditionSlot),
	}
}

// conditionFor returns the condition slot for key, creating it on first
// reference. Callers must already hold s.mu for writing.
func (s *DataShard) conditionFor(key string) *conditionSlot {
	slot, ok := s.conditions[key]
	if !ok {
		slot = &conditionSlot{}
		slot.cond = sync.NewCond(&s.mu)
		s.conditions[key] = slot
	}
	return slot
}

// UserShard is one partition of the username space. Auth/Register take its
// mutex for the duration of the lookup/insert.
type UserShard struct {
	mu        sync.Mutex
	passwords map[string]string
}

func newUserShard() *UserShard {
	return &UserShard{passwords: make(map[string]string)}
}
