package audit

import (
	"fmt"
	"slices"

	"github.com/Strob0t/ClaimDesk/internal/domain/agent"
)

// Log is the ordered sequence of entries produced during a session.
// Operations return new slices and never write the receiver's storage.
type Log []Entry

// Normalize validates every entry and fills in a missing kind. Used on
// caller-submitted logs.
func (l Log) Normalize() (Log, error) {
	out := slices.Clone(l)
	for i := range out {
		if err := out[i].Validate(); err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		if out[i].Kind == "" {
			out[i].Kind = kindOf(out[i].From, out[i].To)
		}
	}
	return out, nil
}

// Append returns a copy of l with e added. A timestamp earlier than the
// previous entry's is raised to it so emission order stays non-decreasing.
func (l Log) Append(e Entry) Log {
	if n := len(l); n > 0 && e.Time.Before(l[n-1].Time) {
		e.Time = l[n-1].Time
	}
	out := make(Log, len(l), len(l)+1)
	copy(out, l)
	return append(out, e)
}

// Merge appends every entry of delta in order.
func (l Log) Merge(delta Log) Log {
	out := l
	for i := range delta {
		out = out.Append(delta[i])
	}
	return out
}

// Since returns the entries appended after the first n.
func (l Log) Since(n int) Log {
	if n >= len(l) {
		return nil
	}
	return slices.Clone(l[n:])
}

// HasPrefix reports whether prefix is an unchanged prefix of l.
func (l Log) HasPrefix(prefix Log) bool {
	if len(prefix) > len(l) {
		return false
	}
	for i := range prefix {
		a, b := &l[i], &prefix[i]
		if a.ID != b.ID || a.From != b.From || a.To != b.To || a.Kind != b.Kind || !a.Time.Equal(b.Time) {
			return false
		}
	}
	return true
}

// LatestDecisionTo scans backward for the most recent specialist reply
// addressed to id.
func (l Log) LatestDecisionTo(id agent.Identity) (Entry, bool) {
	for i := len(l) - 1; i >= 0; i-- {
		if l[i].IsDecisionTo(id) {
			return l[i], true
		}
	}
	return Entry{}, false
}

// Unresolved returns the delegations at index >= from that have no later
// matching decision. Decisions are paired with the earliest open
// delegation to the same specialist from the same requester.
func (l Log) Unresolved(from int) []Entry {
	type key struct{ requester, specialist agent.Identity }
	open := map[key][]int{}
	for i := range l {
		e := &l[i]
		switch {
		case e.IsDelegation():
			k := key{e.From, e.To}
			open[k] = append(open[k], i)
		case e.From.IsSpecialist():
			k := key{e.To, e.From}
			if q := open[k]; len(q) > 0 {
				open[k] = q[1:]
			}
		}
	}

	var idx []int
	for _, q := range open {
		for _, i := range q {
			if i >= from {
				idx = append(idx, i)
			}
		}
	}
	slices.Sort(idx)

	out := make([]Entry, 0, len(idx))
	for _, i := range idx {
		out = append(out, l[i])
	}
	return out
}
