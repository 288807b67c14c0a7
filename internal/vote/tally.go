package vote

// Tally counts votes per classification in first-seen order.
// The zero value is an empty tally ready to use.
type Tally struct {
	order  []Classification
	counts map[Classification]int
}

// Count builds a tally from parsed votes. An empty input yields an empty tally.
func Count(votes []Vote) Tally {
	var t Tally
	for _, v := range votes {
		t.Add(v.Classification)
	}
	return t
}

// Add records one vote for c.
func (t *Tally) Add(c Classification) {
	if t.counts == nil {
		t.counts = make(map[Classification]int)
	}
	if _, seen := t.counts[c]; !seen {
		t.order = append(t.order, c)
	}
	t.counts[c]++
}

// Get returns the number of votes for c.
func (t Tally) Get(c Classification) int {
	return t.counts[c]
}

// Labels returns the classifications in the order they were first seen.
func (t Tally) Labels() []Classification {
	out := make([]Classification, len(t.order))
	copy(out, t.order)
	return out
}

// Total returns the number of votes recorded.
func (t Tally) Total() int {
	n := 0
	for _, c := range t.counts {
		n += c
	}
	return n
}

// Len returns the number of distinct classifications.
func (t Tally) Len() int {
	return len(t.order)
}

// Leader returns the classification with the most votes. Ties go to the
// label seen first. ok is false for an empty tally.
func (t Tally) Leader() (c Classification, count int, ok bool) {
	for _, label := range t.order {
		if n := t.counts[label]; n > count {
			c, count, ok = label, n, true
		}
	}
	return c, count, ok
}

// Entry is one row of a tally.
type Entry struct {
	Classification Classification `json:"classification"`
	Count          int            `json:"count"`
}

// Entries returns the tally rows in first-seen order.
func (t Tally) Entries() []Entry {
	out := make([]Entry, 0, len(t.order))
	for _, c := range t.order {
		out = append(out, Entry{Classification: c, Count: t.counts[c]})
	}
	return out
}
