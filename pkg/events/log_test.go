package events

import (
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestEmit_AssignsIncreasingSeq(t *testing.T) {
	log := NewLog()
	log.Emit(KindMinted, Minted{Serial: 1})
	log.Emit(KindMinted, Minted{Serial: 2})
	log.Emit(KindBurned, Burned{Serial: 1})

	evs := log.All()
	if len(evs) != 3 {
		t.Fatalf("expected 3 events, got %d", len(evs))
	}
	for i, ev := range evs {
		if ev.Seq != uint64(i+1) {
			t.Errorf("event %d: expected seq %d, got %d", i, i+1, ev.Seq)
		}
		if ev.ID == "" {
			t.Errorf("event %d: empty id", i)
		}
	}
	if evs[0].ID == evs[1].ID {
		t.Error("event ids not unique")
	}
}

func TestSince(t *testing.T) {
	log := NewLog()
	for i := 0; i < 5; i++ {
		log.Emit(KindTransferred, Transferred{Serial: int64(i)})
	}

	tail := log.Since(3)
	if len(tail) != 2 {
		t.Fatalf("expected 2 events after seq 3, got %d", len(tail))
	}
	if tail[0].Seq != 4 || tail[1].Seq != 5 {
		t.Errorf("unexpected seqs: %d, %d", tail[0].Seq, tail[1].Seq)
	}
	if got := log.Since(5); len(got) != 0 {
		t.Errorf("expected no events after seq 5, got %d", len(got))
	}
}

func TestTimestampsAreUTC(t *testing.T) {
	log := NewLog()
	log.now = func() time.Time {
		return time.Date(2025, 6, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	}
	log.Emit(KindListed, Listed{ListingID: 1, Seller: common.Address{}})

	ts := log.All()[0].Timestamp
	if ts.Location() != time.UTC {
		t.Errorf("expected UTC timestamp, got %v", ts.Location())
	}
}

func TestSnapshotRestore_TruncatesAppends(t *testing.T) {
	log := NewLog()
	log.Emit(KindMinted, Minted{Serial: 1})
	snap := log.Snapshot()

	log.Emit(KindMinted, Minted{Serial: 2})
	log.Emit(KindMinted, Minted{Serial: 3})
	log.Restore(snap)

	if log.Len() != 1 {
		t.Fatalf("expected 1 event after restore, got %d", log.Len())
	}

	// Sequence numbers continue from the restored position, so a rolled-back
	// call leaves no gap.
	log.Emit(KindMinted, Minted{Serial: 4})
	evs := log.All()
	if evs[1].Seq != 2 {
		t.Errorf("expected seq 2 after restore, got %d", evs[1].Seq)
	}
}
