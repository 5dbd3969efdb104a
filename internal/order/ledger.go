package order

// Ledger tracks trade/execution identifiers already applied to an order.
// An identifier once recorded is never reprocessed, which makes update
// application idempotent under replay. Pure data structure, no I/O.
type Ledger struct {
	ids map[string]struct{}
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{ids: make(map[string]struct{})}
}

// Seen reports whether id has already been applied.
func (l *Ledger) Seen(id string) bool {
	_, ok := l.ids[id]
	return ok
}

// Add records id. Returns false if it was already present.
func (l *Ledger) Add(id string) bool {
	if _, ok := l.ids[id]; ok {
		return false
	}
	l.ids[id] = struct{}{}
	return true
}

// Len returns the number of recorded identifiers.
func (l *Ledger) Len() int {
	return len(l.ids)
}

// IDs returns all recorded identifiers, for persistence.
func (l *Ledger) IDs() []string {
	out := make([]string, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	return out
}
