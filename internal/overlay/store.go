// Package overlay holds the editable state layered on top of rendered pages:
// the value store, the pointer hit-test router and the preview renderer.
package overlay

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/a3tai/pdf-form-overlay/internal/pdf/render"
)

// ErrUnknownField is returned for a (page, index) pair that was not seeded
var ErrUnknownField = errors.New("unknown field")

// Key identifies a field by page index and its index within its kind on that page
type Key struct {
	Page  int `json:"page"`
	Index int `json:"index"`
}

// Kind names what a Change touched
type Kind string

const (
	KindText     Kind = "text"
	KindCheckbox Kind = "checkbox"
	KindLayout   Kind = "layout" // seed or reset, all pages affected
)

// AllPages is the Page of a layout Change
const AllPages = -1

// Change describes a single store mutation
type Change struct {
	Page  int  `json:"page"`
	Kind  Kind `json:"kind"`
	Index int  `json:"index"`
}

// Store keeps text values and checkbox states for the current layout. Text
// fields and checkboxes live in separate keyspaces.
type Store struct {
	mu     sync.RWMutex
	texts  map[Key]string
	checks map[Key]bool

	subMu   sync.Mutex
	subs    map[int]func(Change)
	nextSub int
}

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		texts:  make(map[Key]string),
		checks: make(map[Key]bool),
		subs:   make(map[int]func(Change)),
	}
}

// Seed replaces the layout with the fields of pages. Every text field starts
// empty and every checkbox unchecked.
func (s *Store) Seed(pages []*render.Page) {
	texts := make(map[Key]string)
	checks := make(map[Key]bool)
	for _, p := range pages {
		for _, f := range p.TextFields() {
			texts[Key{Page: p.Index, Index: f.Index}] = ""
		}
		for _, c := range p.Checkboxes() {
			checks[Key{Page: p.Index, Index: c.Index}] = false
		}
	}

	s.mu.Lock()
	s.texts = texts
	s.checks = checks
	s.mu.Unlock()

	s.notify(Change{Page: AllPages, Kind: KindLayout})
}

// Reset clears values and layout
func (s *Store) Reset() {
	s.Seed(nil)
}

// SetText stores value for a text field. An empty value clears the edit.
func (s *Store) SetText(page, index int, value string) error {
	key := Key{Page: page, Index: index}

	s.mu.Lock()
	if _, ok := s.texts[key]; !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: text field %d on page %d", ErrUnknownField, index, page)
	}
	s.texts[key] = value
	s.mu.Unlock()

	s.notify(Change{Page: page, Kind: KindText, Index: index})
	return nil
}

// ToggleCheckbox flips a checkbox and returns its new state
func (s *Store) ToggleCheckbox(page, index int) (bool, error) {
	key := Key{Page: page, Index: index}

	s.mu.Lock()
	checked, ok := s.checks[key]
	if !ok {
		s.mu.Unlock()
		return false, fmt.Errorf("%w: checkbox %d on page %d", ErrUnknownField, index, page)
	}
	checked = !checked
	s.checks[key] = checked
	s.mu.Unlock()

	s.notify(Change{Page: page, Kind: KindCheckbox, Index: index})
	return checked, nil
}

// Text returns a text field's value
func (s *Store) Text(page, index int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.texts[Key{Page: page, Index: index}]
	if !ok {
		return "", fmt.Errorf("%w: text field %d on page %d", ErrUnknownField, index, page)
	}
	return v, nil
}

// Checked returns a checkbox's state
func (s *Store) Checked(page, index int) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.checks[Key{Page: page, Index: index}]
	if !ok {
		return false, fmt.Errorf("%w: checkbox %d on page %d", ErrUnknownField, index, page)
	}
	return v, nil
}

// Snapshot returns a consistent copy of all values
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := &Snapshot{
		texts:  make(map[Key]string, len(s.texts)),
		checks: make(map[Key]bool, len(s.checks)),
	}
	for k, v := range s.texts {
		snap.texts[k] = v
	}
	for k, v := range s.checks {
		snap.checks[k] = v
	}
	return snap
}

// Subscribe registers fn for every subsequent change. fn runs on the mutating
// goroutine after the store lock is released. The returned func unsubscribes.
func (s *Store) Subscribe(fn func(Change)) func() {
	s.subMu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.subMu.Unlock()

	return func() {
		s.subMu.Lock()
		delete(s.subs, id)
		s.subMu.Unlock()
	}
}

func (s *Store) notify(c Change) {
	s.subMu.Lock()
	ids := make([]int, 0, len(s.subs))
	for id := range s.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	fns := make([]func(Change), 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.subs[id])
	}
	s.subMu.Unlock()

	for _, fn := range fns {
		fn(c)
	}
}

// Snapshot is an immutable copy of the store's values
type Snapshot struct {
	texts  map[Key]string
	checks map[Key]bool
}

// Text returns the value of a text field, empty when unset or unknown
func (s *Snapshot) Text(page, index int) string {
	return s.texts[Key{Page: page, Index: index}]
}

// Checked reports whether a checkbox is checked
func (s *Snapshot) Checked(page, index int) bool {
	return s.checks[Key{Page: page, Index: index}]
}

// Edited returns the number of non-empty text values and checked boxes
func (s *Snapshot) Edited() (texts, checked int) {
	for _, v := range s.texts {
		if v != "" {
			texts++
		}
	}
	for _, v := range s.checks {
		if v {
			checked++
		}
	}
	return texts, checked
}
