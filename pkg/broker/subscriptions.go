// ABOUTME: Subscription table for the event broker
// ABOUTME: Maps event names to the connections subscribed to them
package broker

import (
	"sort"
	"sync"
)

// subscriptions maps event name to subscriber set. Each connection also
// tracks its own names so disconnect cleanup is proportional to them.
type subscriptions struct {
	mu     sync.RWMutex
	topics map[string]map[*connection]struct{}
}

func newSubscriptions() *subscriptions {
	return &subscriptions{topics: make(map[string]map[*connection]struct{})}
}

// subscribe reports whether c was newly added
func (s *subscriptions) subscribe(c *connection, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	set, ok := s.topics[name]
	if !ok {
		set = make(map[*connection]struct{})
		s.topics[name] = set
	}
	if _, exists := set[c]; exists {
		return false
	}
	set[c] = struct{}{}
	c.topics[name] = struct{}{}
	return true
}

// unsubscribe reports whether c was subscribed
func (s *subscriptions) unsubscribe(c *connection, name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(c, name)
}

func (s *subscriptions) removeLocked(c *connection, name string) bool {
	delete(c.topics, name)
	set, ok := s.topics[name]
	if !ok {
		return false
	}
	if _, exists := set[c]; !exists {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(s.topics, name)
	}
	return true
}

// removeAll purges c from every set and returns the names it held
func (s *subscriptions) removeAll(c *connection) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(c.topics))
	for name := range c.topics {
		names = append(names, name)
	}
	for _, name := range names {
		s.removeLocked(c, name)
	}
	sort.Strings(names)
	return names
}

// each calls fn for every subscriber of name while holding the read lock.
// Connections are only torn down under the write lock, so fn may send on
// a subscriber's queue without racing its close.
func (s *subscriptions) each(name string, fn func(c *connection)) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	set := s.topics[name]
	for c := range set {
		fn(c)
	}
	return len(set)
}

// counts returns subscriber counts per name
func (s *subscriptions) counts() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int, len(s.topics))
	for name, set := range s.topics {
		out[name] = len(set)
	}
	return out
}

func (s *subscriptions) len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.topics)
}
