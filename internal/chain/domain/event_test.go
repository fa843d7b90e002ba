package domain

import "testing"

func TestSortEventsByBlockThenLogIndex(t *testing.T) {
	events := []RawEvent{
		{TxHash: "c", BlockNumber: 20, LogIndex: 0},
		{TxHash: "b", BlockNumber: 10, LogIndex: 3},
		{TxHash: "a", BlockNumber: 10, LogIndex: 1},
	}
	SortEvents(events)

	want := []string{"a", "b", "c"}
	for i, hash := range want {
		if events[i].TxHash != hash {
			t.Fatalf("position %d: expected %s, got %s", i, hash, events[i].TxHash)
		}
	}
}

func TestEventKindValid(t *testing.T) {
	for _, kind := range Kinds {
		if !kind.Valid() {
			t.Fatalf("expected %s to be valid", kind)
		}
	}
	if EventKind("transfer").Valid() {
		t.Fatalf("expected unknown kind to be invalid")
	}
}
