package rpc

import "testing"

func TestPendingTableInsertTake(t *testing.T) {
	pt := newPendingTable()
	ch := make(chan callResult, 1)
	pt.insert(5, ch)

	if pt.len() != 1 {
		t.Fatalf("len() = %d, want 1", pt.len())
	}

	got, ok := pt.take(5)
	if !ok {
		t.Fatal("take(5) ok = false, want true")
	}
	if got != ch {
		t.Error("take(5) returned a different channel than inserted")
	}
	if pt.len() != 0 {
		t.Errorf("len() after take = %d, want 0", pt.len())
	}
}

func TestPendingTableTakeUnknownID(t *testing.T) {
	pt := newPendingTable()
	_, ok := pt.take(99)
	if ok {
		t.Fatal("take(99) ok = true on empty table, want false")
	}
}

func TestPendingTablePrune(t *testing.T) {
	pt := newPendingTable()
	pt.insert(1, make(chan callResult, 1))
	pt.prune(1)
	if pt.len() != 0 {
		t.Errorf("len() after prune = %d, want 0", pt.len())
	}
	// pruning an absent id is a no-op, not an error
	pt.prune(1)
}

func TestPendingTableDrainInInsertionOrder(t *testing.T) {
	pt := newPendingTable()
	var ids []uint64
	chans := make(map[uint64]chan callResult)
	for _, id := range []uint64{3, 1, 4, 1, 5} {
		// duplicate ids are skipped: the sequence counter guarantees
		// uniqueness and insert relies on it (a repeated id would be tracked
		// twice in the drain order)
		if _, exists := chans[id]; exists {
			continue
		}
		ch := make(chan callResult, 1)
		chans[id] = ch
		pt.insert(id, ch)
		ids = append(ids, id)
	}

	drained := pt.drain()
	if len(drained) != len(ids) {
		t.Fatalf("drain() returned %d channels, want %d", len(drained), len(ids))
	}
	if pt.len() != 0 {
		t.Errorf("len() after drain = %d, want 0", pt.len())
	}
	for i, id := range ids {
		if drained[i] != chans[id] {
			t.Errorf("drain()[%d] is not the channel inserted for id %d", i, id)
		}
	}

	// every entry resolved to a TransportError by the caller (Endpoint does
	// this); pendingTable itself only hands back the channels.
	for _, ch := range drained {
		select {
		case <-ch:
			t.Error("drain() should not itself deliver to channels")
		default:
		}
	}
}

func TestPendingTableDrainIsIdempotentlyEmptyAfterward(t *testing.T) {
	pt := newPendingTable()
	pt.insert(1, make(chan callResult, 1))
	pt.drain()
	if got := pt.drain(); len(got) != 0 {
		t.Errorf("second drain() = %d entries, want 0", len(got))
	}
}
