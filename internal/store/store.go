package store

import (
	"bytes"
	"sort"

	"github.com/cespare/xxhash/v2"
)

// ShardedStore is the top-level sharded key-value and user store. Data and
// user shards are allocated once at construction and live for the server's
// lifetime; neither shard count nor the hash function changes afterward.
type ShardedStore struct {
	dataShards []*DataShard
	userShards []*UserShard
}

// New creates a store with dataShardCount data shards and userShardCount
// user shards. Both must be positive.
func New(dataShardCount, userShardCount int) *ShardedStore {
	s := &ShardedStore{
		dataShards: make([]*DataShard, dataShardCount),
		userShards: make([]*UserShard, userShardCount),
	}
	for i := range s.dataShards {
		s.dataShards[i] = newDataShard()
	}
	for i := range s.userShards {
		s.userShards[i] = newUserShard()
	}
	return s
}

// shardIndex hashes key with xxhash and routes it into [0, count). xxhash's
// 64-bit digest is unsigned, so the modulo is already non-negative — no
// separate abs() step is needed to satisfy §4.3's determinism requirement.
func shardIndex(key string, count int) int {
	return int(xxhash.Sum64String(key) % uint64(count))
}

func (s *ShardedStore) dataShard(key string) *DataShard {
	return s.dataShards[shardIndex(key, len(s.dataShards))]
}

func (s *ShardedStore) userShard(key string) *UserShard {
	return s.userShards[shardIndex(key, len(s.userShards))]
}

// Put inserts or overwrites key under the owning data shard's write lock,
// then signals any condition slot registered for key.
func (s *ShardedStore) Put(key string, value []byte) {
	shard := s.dataShard(key)
	shard.mu.Lock()
	stored := make([]byte, len(value))
	copy(stored, value)
	shard.data[key] = stored
	s.notifyIfPresentLocked(shard, key)
	shard.mu.Unlock()
}

// Get reads key under the owning data shard's read lock.
func (s *ShardedStore) Get(key string) ([]byte, bool) {
	shard := s.dataShard(key)
	shard.mu.RLock()
	defer shard.mu.RUnlock()
	v, ok := shard.data[key]
	if !ok {
		return nil, false
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true
}

// notifyIfPresentLocked broadcasts the condition slot for key, if one
// exists. Callers must already hold shard.mu for writing.
func (s *ShardedStore) notifyIfPresentLocked(shard *DataShard, key string) {
	if slot, ok := shard.conditions[key]; ok {
		slot.cond.Broadcast()
	}
}

// MultiPut groups pairs by owning shard and acquires the involved shard
// write locks in ascending shard-index order before any write, to prevent
// deadlock against a concurrent MultiPut/MultiGet touching an overlapping
// shard set in a different order. Each shard's writes (and notifications)
// complete, and its lock releases, before the next shard group starts —
// MultiPut is atomic per shard, not across shards.
func (s *ShardedStore) MultiPut(pairs []KV) {
	groups := s.groupByDataShard(keysOf(pairs))
	order := groups.orderedIndices()
	for _, idx := range order {
		s.dataShards[idx].mu.Lock()
	}
	for _, idx := range order {
		shard := s.dataShards[idx]
		for _, i := range groups.indices[idx] {
			kv := pairs[i]
			stored := make([]byte, len(kv.Value))
			copy(stored, kv.Value)
			shard.data[kv.Key] = stored
			s.notifyIfPresentLocked(shard, kv.Key)
		}
		shard.mu.Unlock()
	}
}

// MultiGet groups keys by owning shard and acquires the involved shard read
// locks in ascending shard-index order, releasing each as its group
// completes. found[key] is false for keys with no value, distinguishing
// absence from a present empty value.
func (s *ShardedStore) MultiGet(keys []string) (values map[string][]byte, found map[string]bool) {
	values = make(map[string][]byte, len(keys))
	found = make(map[string]bool, len(keys))

	groups := s.groupByDataShard(keys)
	for _, idx := range groups.orderedIndices() {
		shard := s.dataShards[idx]
		shard.mu.RLock()
		for _, i := range groups.indices[idx] {
			key := keys[i]
			if v, ok := shard.data[key]; ok {
				out := make([]byte, len(v))
				copy(out, v)
				values[key] = out
				found[key] = true
			}
		}
		shard.mu.RUnlock()
	}
	return values, found
}

// Auth reports whether user exists and password matches exactly.
func (s *ShardedStore) Auth(user, password string) bool {
	shard := s.userShard(user)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	pw, ok := shard.passwords[user]
	return ok && pw == password
}

// Register inserts a new user, returning false if the username is already
// taken.
func (s *ShardedStore) Register(user, password string) bool {
	shard := s.userShard(user)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	if _, exists := shard.passwords[user]; exists {
		return false
	}
	shard.passwords[user] = password
	return true
}

// KV is a key/value pair for batch writes.
type KV struct {
	Key   string
	Value []byte
}

func keysOf(pairs []KV) []string {
	keys := make([]string, len(pairs))
	for i, kv := range pairs {
		keys[i] = kv.Key
	}
	return keys
}

// shardGroups maps data-shard index to the positions (in the original
// request slice) of the keys that hash to it.
type shardGroups struct {
	indices map[int][]int
}

func (s *ShardedStore) groupByDataShard(keys []string) shardGroups {
	g := shardGroups{indices: make(map[int][]int)}
	for i, k := range keys {
		idx := shardIndex(k, len(s.dataShards))
		g.indices[idx] = append(g.indices[idx], i)
	}
	return g
}

// orderedIndices returns the involved shard indices in ascending order —
// the lock-acquisition order §4.3/§5 require to avoid deadlock against
// concurrent batch operations touching an overlapping shard set.
func (g shardGroups) orderedIndices() []int {
	out := make([]int, 0, len(g.indices))
	for idx := range g.indices {
		out = append(out, idx)
	}
	sort.Ints(out)
	return out
}

// bytesEqual is a tiny wrapper kept for call-site clarity in condition
// evaluation (get_when predicate checks).
func bytesEqual(a, b []byte) bool {
	return bytes.Equal(a, b)
}
