// ABOUTME: Tests for the broker subscription table
// ABOUTME: Verifies set creation, cleanup and per-connection tracking
package broker

import (
	"reflect"
	"testing"
)

func newTestConnection(id string) *connection {
	return &connection{ID: id, topics: make(map[string]struct{})}
}

func TestSubscribeCreatesAndDeletesSets(t *testing.T) {
	subs := newSubscriptions()
	a := newTestConnection("a")

	if !subs.subscribe(a, "X") {
		t.Fatal("expected first subscribe to add")
	}
	if subs.subscribe(a, "X") {
		t.Error("expected duplicate subscribe to be ignored")
	}
	if got := subs.counts(); got["X"] != 1 {
		t.Errorf("expected 1 subscriber for X, got %v", got)
	}

	if !subs.unsubscribe(a, "X") {
		t.Fatal("expected unsubscribe to remove")
	}
	if subs.unsubscribe(a, "X") {
		t.Error("expected second unsubscribe to be a no-op")
	}
	if subs.len() != 0 {
		t.Errorf("expected empty set to be deleted, got %v", subs.counts())
	}
}

func TestRemoveAllPurgesEverySet(t *testing.T) {
	subs := newSubscriptions()
	a := newTestConnection("a")
	b := newTestConnection("b")

	for _, name := range []string{"Y", "X", "Z"} {
		subs.subscribe(a, name)
	}
	subs.subscribe(b, "X")

	names := subs.removeAll(a)
	if !reflect.DeepEqual(names, []string{"X", "Y", "Z"}) {
		t.Errorf("unexpected purged names %v", names)
	}
	if len(a.topics) != 0 {
		t.Errorf("expected connection topics cleared, got %v", a.topics)
	}

	expected := map[string]int{"X": 1}
	if got := subs.counts(); !reflect.DeepEqual(got, expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestEachVisitsSubscribers(t *testing.T) {
	subs := newSubscriptions()
	conns := []*connection{newTestConnection("1"), newTestConnection("2"), newTestConnection("3")}
	for _, c := range conns {
		subs.subscribe(c, "X")
	}

	seen := map[string]bool{}
	n := subs.each("X", func(c *connection) { seen[c.ID] = true })
	if n != 3 || len(seen) != 3 {
		t.Errorf("expected 3 visits, got n=%d seen=%v", n, seen)
	}

	if n := subs.each("missing", func(*connection) { t.Error("unexpected visit") }); n != 0 {
		t.Errorf("expected 0 for unknown name, got %d", n)
	}
}
