// Package review serves candidate pairs of the active folder page by page and
// applies deletions and folder switches to that state.
package review

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/eargollo/dupview/internal/catalog"
	"github.com/eargollo/dupview/internal/pairing"
)

var (
	// ErrInvalidCursor is returned for negative cursors.
	ErrInvalidCursor = errors.New("invalid cursor")

	// ErrInvalidLimit is returned for non-positive page sizes.
	ErrInvalidLimit = errors.New("invalid limit")

	// ErrSessionReset is returned when a cursor was issued by a session that
	// has since been replaced; the walk must restart at cursor 0.
	ErrSessionReset = errors.New("session was reset, restart from cursor 0")

	// ErrIO is returned when the filesystem refused a deletion. The file and
	// its id remain valid.
	ErrIO = errors.New("i/o error")
)

// Session is the review state of one folder scan: the catalog snapshot, the
// pair sequence derived from it and the furthest cursor handed out.
// A new folder selection always produces a new Session.
type Session struct {
	ID        string
	CreatedAt time.Time

	catalog    *catalog.Catalog
	pairs      *pairing.Enumerator
	total      int
	lastCursor int
}

// NewSession groups the catalog and fixes the candidate total.
func NewSession(cat *catalog.Catalog) *Session {
	pairs := pairing.NewEnumerator(pairing.GroupRecords(cat.Records()))
	return &Session{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
		catalog:   cat,
		pairs:     pairs,
		total:     pairs.Total(),
	}
}

// Catalog returns the session's file catalog.
func (s *Session) Catalog() *catalog.Catalog { return s.catalog }

// Total is the number of candidate pairs at session start. It does not
// shrink when files are deleted.
func (s *Session) Total() int { return s.total }

// LastCursor is the largest next_cursor this session has returned.
func (s *Session) LastCursor() int { return s.lastCursor }

// Page is one slice of the pair sequence.
type Page struct {
	SessionID  string
	Pairs      []pairing.Pair
	NextCursor int
	Done       bool
	Total      int
	Skipped    int
}

// NextPage returns up to limit deliverable pairs starting at position cursor.
// Pairs with a retired or vanished member are skipped and do not count
// toward limit. NextCursor advances by the positions consumed, skipped ones
// included, so resuming from it never repeats or misses a pair.
func (s *Session) NextPage(cursor, limit int) (Page, error) {
	if limit <= 0 {
		return Page{}, fmt.Errorf("%w: %d", ErrInvalidLimit, limit)
	}
	if cursor < 0 {
		return Page{}, fmt.Errorf("%w: %d", ErrInvalidCursor, cursor)
	}

	page := Page{
		SessionID:  s.ID,
		Pairs:      []pairing.Pair{},
		NextCursor: cursor,
		Total:      s.total,
	}
	s.pairs.Walk(cursor, func(p pairing.Pair) bool {
		page.NextCursor = p.Index + 1
		if s.catalog.Present(p.Left.ID) && s.catalog.Present(p.Right.ID) {
			page.Pairs = append(page.Pairs, p)
		} else {
			page.Skipped++
		}
		return len(page.Pairs) < limit
	})
	page.Done = page.NextCursor >= s.total

	if page.NextCursor > s.lastCursor {
		s.lastCursor = page.NextCursor
	}
	return page, nil
}
