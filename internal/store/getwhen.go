package store

// GetWhen implements the two-phase get-when primitive of §4.4. It always
// registers the wait first. If key_cond already holds value_cond, it
// resolves synchronously; otherwise it spawns a background waiter bound to
// sink and returns immediate=false (no reply is sent by the caller in that
// case — the waiter will send one later, possibly for a different tag, per
// the FIFO tag-queue rule below).
//
// Resolution — synchronous or background — always pops the FRONT of the
// condition's pending queue, not necessarily the entry that just became
// ready. This mirrors the source protocol's documented quirk: the head is
// dequeued under the shard's write lock, so two waiters never claim the same
// head; the target value is fetched and the reply sent after that lock is
// released. The tag that gets replied to is whichever registered first for
// that key, not necessarily the one whose value condition just matched.
func (s *ShardedStore) GetWhen(tag int32, keyTarget, keyCond string, valueCond []byte, sink ReplySink) (immediate bool, value []byte, found bool) {
	shard := s.dataShard(keyCond)
	entry := &waiterEntry{tag: tag, keyTarget: keyTarget, valueCond: valueCond, sink: sink}

	shard.mu.Lock()
	slot := shard.conditionFor(keyCond)
	slot.pending = append(slot.pending, entry)

	current, ok := shard.data[keyCond]
	if ok && bytesEqual(current, valueCond) {
		head := slot.popHead()
		shard.mu.Unlock()

		val, found := s.Get(head.keyTarget)
		if head == entry {
			// Our own request was satisfied immediately: the caller sends
			// the synchronous reply itself.
			return true, val, found
		}
		// A different, earlier-registered waiter resolved instead; send its
		// reply now and tell our caller nothing is pending for it.
		head.sink.ReplyGetWhen(head.tag, val, found)
		return false, nil, false
	}
	shard.mu.Unlock()

	go s.runWaiter(shard, keyCond, entry)
	return false, nil, false
}

// runWaiter blocks on the condition slot's variable until entry's own
// predicate is satisfied or the owning session is torn down, then resolves
// the FIFO head (see GetWhen's doc comment for why that may not be entry
// itself).
func (s *ShardedStore) runWaiter(shard *DataShard, keyCond string, entry *waiterEntry) {
	shard.mu.Lock()
	slot := shard.conditionFor(keyCond)

	for {
		if entry.sink.Cancelled() {
			slot.remove(entry)
			shard.mu.Unlock()
			return
		}
		current, ok := shard.data[keyCond]
		if ok && bytesEqual(current, entry.valueCond) {
			break
		}
		slot.cond.Wait()
	}

	head := slot.popHead()
	shard.mu.Unlock()

	if head == nil {
		// Raced with another resolver that already drained the queue;
		// nothing left to reply to.
		return
	}
	val, found := s.Get(head.keyTarget)
	head.sink.ReplyGetWhen(head.tag, val, found)
}
