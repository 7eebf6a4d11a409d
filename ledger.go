package valuation

import (
	"cmp"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"
)

// Ledger is the list of the events of a portfolio.
//
// In a Ledger events are always ordered by time, ties by id.
type Ledger struct {
	events []Event
}

// NewLedger decodes and orders records. It fails on the first invalid record.
func NewLedger(records ...PortfolioEvent) (*Ledger, error) {
	l := &Ledger{events: make([]Event, 0, len(records))}
	for _, r := range records {
		e, err := r.Event()
		if err != nil {
			return nil, fmt.Errorf("event %q: %w", r.ID, err)
		}
		l.events = append(l.events, e)
	}
	slices.SortStableFunc(l.events, compareEvents)
	return l, nil
}

// compareEvents orders by time then id.
func compareEvents(a, b Event) int {
	if c := a.When().Compare(b.When()); c != 0 {
		return c
	}
	return strings.Compare(a.ID(), b.ID())
}

// SortRecords orders records by time then id, the order of a Ledger.
func SortRecords(records []PortfolioEvent) {
	slices.SortStableFunc(records, func(a, b PortfolioEvent) int {
		return cmp.Or(a.Time.Compare(b.Time), strings.Compare(a.ID, b.ID))
	})
}

// Len returns the number of events.
func (l *Ledger) Len() int { return len(l.events) }

// All returns an iterator over the events in order.
func (l *Ledger) All() iter.Seq[Event] { return slices.Values(l.events) }

// Records returns the stored form of the events in order.
func (l *Ledger) Records() []PortfolioEvent {
	records := make([]PortfolioEvent, len(l.events))
	for i, e := range l.events {
		records[i] = e.Record()
	}
	return records
}

// Add inserts e at its place.
func (l *Ledger) Add(e Event) {
	i, _ := slices.BinarySearchFunc(l.events, e, compareEvents)
	l.events = slices.Insert(l.events, i, e)
}

// Replace swaps the event with the same id for e, moving it to its new place.
func (l *Ledger) Replace(e Event) error {
	i := slices.IndexFunc(l.events, func(x Event) bool { return x.ID() == e.ID() })
	if i < 0 {
		return fmt.Errorf("event %q: %w", e.ID(), ErrNotFound)
	}
	l.events = slices.Delete(l.events, i, i+1)
	l.Add(e)
	return nil
}

// Contains reports whether an event has this id.
func (l *Ledger) Contains(id string) bool {
	return slices.ContainsFunc(l.events, func(e Event) bool { return e.ID() == id })
}

// Until returns the events with a time not after t.
func (l *Ledger) Until(t time.Time) *Ledger {
	n, _ := slices.BinarySearchFunc(l.events, t, func(e Event, t time.Time) int {
		if e.When().After(t) {
			return 1
		}
		return -1
	})
	return &Ledger{events: l.events[:n:n]}
}

// First returns the time of the earliest event, or the zero time.
func (l *Ledger) First() time.Time {
	if len(l.events) == 0 {
		return time.Time{}
	}
	return l.events[0].When()
}

// Replay is the state reached after applying every event of a ledger.
type Replay struct {
	// Holdings indexed by security id, including closed ones.
	Holdings map[string]*Holding
	Cash     *CashLedger
}

// Replay applies every event in order to the holdings and the cash ledger,
// in a single pass. It fails with ErrInsufficientHoldings when an event
// removes more shares than held.
func (l *Ledger) Replay() (*Replay, error) {
	r := &Replay{Holdings: make(map[string]*Holding), Cash: NewCashLedger()}
	for _, e := range l.events {
		switch e.What() {
		case EventTypeBuy, EventTypeSell, EventTypeDeliveryInbound, EventTypeDeliveryOutbound:
			id := securityOf(e)
			h, ok := r.Holdings[id]
			if !ok {
				h = NewHolding(id)
				r.Holdings[id] = h
			}
			if err := h.Apply(e); err != nil {
				return nil, err
			}
		}
		if err := r.Cash.Apply(e); err != nil {
			return nil, err
		}
	}
	return r, nil
}
