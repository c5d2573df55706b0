// Package identity keeps the correlation id -> participants index used to
// filter acquisitions by user and group.
package identity

import (
	"context"
	"sort"
	"sync"

	"github.com/rzbill/xwork/internal/job"
	"github.com/rzbill/xwork/internal/store"
)

// Participants are the users and groups linked to one correlation id.
type Participants struct {
	Users  []string `json:"users"`
	Groups []string `json:"groups"`
}

// Matches reports whether userID is a participant or any of groupIDs is.
// An empty user and no groups means no filter, so everything matches.
func (p Participants) Matches(userID string, groupIDs []string) bool {
	if userID == "" && len(groupIDs) == 0 {
		return true
	}
	if userID != "" {
		for _, u := range p.Users {
			if u == userID {
				return true
			}
		}
	}
	for _, want := range groupIDs {
		for _, g := range p.Groups {
			if g == want {
				return true
			}
		}
	}
	return false
}

type entry struct {
	users  map[string]struct{}
	groups map[string]struct{}
}

// Index is an in-memory map from correlation id to participants. It is
// loaded from the store and kept in step by Add and Remove, which write
// through to the store first.
//
// A shared index serves a store that other processes write to. Its cache
// only reflects this process, so Participants reads the links from the
// caller's transaction instead.
type Index struct {
	store  store.Store
	shared bool

	mu    sync.RWMutex
	links map[string]*entry
}

// NewIndex returns an empty index over s. Call Load to fill it.
func NewIndex(s store.Store) *Index {
	return &Index{store: s, links: map[string]*entry{}}
}

// NewSharedIndex returns an index over a store shared with other processes.
func NewSharedIndex(s store.Store) *Index {
	return &Index{store: s, shared: true, links: map[string]*entry{}}
}

// Load replaces the in-memory index with the links in the store.
func (x *Index) Load(ctx context.Context) error {
	links := map[string]*entry{}
	err := x.store.View(ctx, func(r store.Reader) error {
		return r.ScanIdentityLinks("", func(l job.IdentityLink) error {
			add(links, l)
			return nil
		})
	})
	if err != nil {
		return err
	}
	x.mu.Lock()
	x.links = links
	x.mu.Unlock()
	return nil
}

// Add stores the links and indexes them.
func (x *Index) Add(ctx context.Context, links ...job.IdentityLink) error {
	for _, l := range links {
		if err := l.Validate(); err != nil {
			return err
		}
	}
	err := x.store.Update(ctx, func(tx store.Tx) error {
		for _, l := range links {
			if err := tx.PutIdentityLink(l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	x.Apply(links...)
	return nil
}

// Remove deletes the links from the store and the index.
func (x *Index) Remove(ctx context.Context, links ...job.IdentityLink) error {
	err := x.store.Update(ctx, func(tx store.Tx) error {
		for _, l := range links {
			if err := tx.DeleteIdentityLink(l); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, l := range links {
		e := x.links[l.CorrelationID]
		if e == nil {
			continue
		}
		delete(e.users, l.UserID)
		delete(e.groups, l.GroupID)
		if len(e.users) == 0 && len(e.groups) == 0 {
			delete(x.links, l.CorrelationID)
		}
	}
	return nil
}

// Apply indexes links that were already written by another transaction.
func (x *Index) Apply(links ...job.IdentityLink) {
	x.mu.Lock()
	defer x.mu.Unlock()
	for _, l := range links {
		add(x.links, l)
	}
}

// Participants returns the users and groups linked to correlationID as seen
// by r. Only a shared index touches r; otherwise the cache answers.
func (x *Index) Participants(r store.Reader, correlationID string) (Participants, error) {
	if !x.shared {
		return x.FindParticipants(correlationID), nil
	}
	links := map[string]*entry{}
	err := r.ScanIdentityLinks(correlationID, func(l job.IdentityLink) error {
		add(links, l)
		return nil
	})
	if err != nil {
		return Participants{}, err
	}
	return participants(links[correlationID]), nil
}

// FindParticipants returns the cached users and groups linked to
// correlationID. For a shared index this is only what this process wrote
// or loaded.
func (x *Index) FindParticipants(correlationID string) Participants {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return participants(x.links[correlationID])
}

func participants(e *entry) Participants {
	if e == nil {
		return Participants{}
	}
	return Participants{Users: sortedKeys(e.users), Groups: sortedKeys(e.groups)}
}

func add(links map[string]*entry, l job.IdentityLink) {
	e := links[l.CorrelationID]
	if e == nil {
		e = &entry{users: map[string]struct{}{}, groups: map[string]struct{}{}}
		links[l.CorrelationID] = e
	}
	if l.UserID != "" {
		e.users[l.UserID] = struct{}{}
	}
	if l.GroupID != "" {
		e.groups[l.GroupID] = struct{}{}
	}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
