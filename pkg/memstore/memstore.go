// Package memstore provides an in-process Driver for a single process or tests.
//
// Every key holds a sorted set and a version counter bumped on each change.
// A session records the versions of the keys it watches and Exec aborts when
// any of them moved, which mirrors Redis WATCH/MULTI/EXEC between sessions
// sharing one Store.
package memstore

import (
	"context"
	"sort"
	"sync"

	"github.com/jdziat/redis-scheduler/pkg/core"
)

// Store is an in-memory sorted-set store. It is safe for concurrent use.
type Store struct {
	mu       sync.Mutex
	sets     map[string]map[string]int64
	versions map[string]uint64
}

var _ core.Driver = (*Store)(nil)

// New creates an empty store.
func New() *Store {
	return &Store{
		sets:     make(map[string]map[string]int64),
		versions: make(map[string]uint64),
	}
}

// Execute runs fn on a new session.
func (s *Store) Execute(ctx context.Context, fn func(core.Commands) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&session{store: s})
}

// Score returns the score of taskID at key.
func (s *Store) Score(key, taskID string) (int64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	score, ok := s.sets[key][taskID]
	return score, ok
}

// Members returns the members at key ordered by score.
func (s *Store) Members(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	members := make([]string, 0, len(s.sets[key]))
	for m := range s.sets[key] {
		members = append(members, m)
	}
	set := s.sets[key]
	sort.Slice(members, func(i, j int) bool {
		if set[members[i]] != set[members[j]] {
			return set[members[i]] < set[members[j]]
		}
		return members[i] < members[j]
	})
	return members
}

// Len returns the number of members at key.
func (s *Store) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sets[key])
}

// The following helpers expect s.mu to be held.

func (s *Store) add(key, taskID string, score int64) {
	set, ok := s.sets[key]
	if !ok {
		set = make(map[string]int64)
		s.sets[key] = set
	}
	if old, exists := set[taskID]; exists && old == score {
		return
	}
	set[taskID] = score
	s.versions[key]++
}

func (s *Store) remove(key, taskID string) {
	set, ok := s.sets[key]
	if !ok {
		return
	}
	if _, exists := set[taskID]; !exists {
		return
	}
	delete(set, taskID)
	if len(set) == 0 {
		delete(s.sets, key)
	}
	s.versions[key]++
}

func (s *Store) del(key string) {
	if _, ok := s.sets[key]; !ok {
		return
	}
	delete(s.sets, key)
	s.versions[key]++
}

type session struct {
	store   *Store
	watched map[string]uint64
	queued  []func()
	multi   bool
}

func (c *session) apply(op func()) {
	if c.multi {
		c.queued = append(c.queued, op)
		return
	}
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	op()
}

func (c *session) AddToSetWithScore(ctx context.Context, key, taskID string, score int64) error {
	c.apply(func() { c.store.add(key, taskID, score) })
	return nil
}

func (c *session) RemoveFromSet(ctx context.Context, key, taskID string) error {
	c.apply(func() { c.store.remove(key, taskID) })
	return nil
}

func (c *session) Remove(ctx context.Context, key string) error {
	c.apply(func() { c.store.del(key) })
	return nil
}

func (c *session) Watch(ctx context.Context, key string) error {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()
	if c.watched == nil {
		c.watched = make(map[string]uint64)
	}
	if _, ok := c.watched[key]; !ok {
		c.watched[key] = c.store.versions[key]
	}
	return nil
}

func (c *session) Unwatch(ctx context.Context) error {
	c.watched = nil
	return nil
}

func (c *session) Multi(ctx context.Context) error {
	c.multi = true
	return nil
}

func (c *session) Exec(ctx context.Context) (bool, error) {
	if !c.multi {
		return false, core.ErrExecWithoutMulti
	}
	queued, watched := c.queued, c.watched
	c.queued, c.watched, c.multi = nil, nil, false

	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	for key, version := range watched {
		if c.store.versions[key] != version {
			return false, nil
		}
	}
	for _, op := range queued {
		op()
	}
	return true, nil
}

func (c *session) FirstByScore(ctx context.Context, key string, minScore, maxScore int64) (string, bool, error) {
	c.store.mu.Lock()
	defer c.store.mu.Unlock()

	var (
		best      string
		bestScore int64
		found     bool
	)
	for member, score := range c.store.sets[key] {
		if score < minScore || score > maxScore {
			continue
		}
		if !found || score < bestScore || (score == bestScore && member < best) {
			best, bestScore, found = member, score, true
		}
	}
	return best, found, nil
}
