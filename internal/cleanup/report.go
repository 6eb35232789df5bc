package cleanup

import (
	"fmt"
	"sort"
	"strings"
)

// State is the terminal state of one resource after a cleanup attempt.
type State string

const (
	StateDeleted State = "DELETED"
	StateAbsent  State = "ABSENT"
	StateFailed  State = "FAILED"
)

// Report maps every discovered resource to its terminal state. Every
// resource is always attempted; a FAILED entry never prevents the others
// from being recorded.
type Report struct {
	states  map[string]State
	reasons map[string]string
	order   []string
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{
		states:  make(map[string]State),
		reasons: make(map[string]string),
	}
}

// Record sets the terminal state for a resource.
func (r *Report) Record(resource string, state State, reason string) {
	if _, seen := r.states[resource]; !seen {
		r.order = append(r.order, resource)
	}
	r.states[resource] = state
	if reason != "" {
		r.reasons[resource] = reason
	}
}

// State returns the recorded state for a resource.
func (r *Report) State(resource string) (State, bool) {
	s, ok := r.states[resource]
	return s, ok
}

// Failed reports whether any resource ended FAILED.
func (r *Report) Failed() bool {
	for _, s := range r.states {
		if s == StateFailed {
			return true
		}
	}
	return false
}

// Resources returns the recorded resource names in attempt order.
func (r *Report) Resources() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Summary renders the report as one line per resource.
func (r *Report) Summary() string {
	var b strings.Builder
	names := r.Resources()
	if len(names) == 0 {
		names = sortedKeys(r.states)
	}
	for _, name := range names {
		fmt.Fprintf(&b, "  %-40s %s", name, r.states[name])
		if reason := r.reasons[name]; reason != "" {
			fmt.Fprintf(&b, " (%s)", reason)
		}
		b.WriteByte('\n')
	}
	return b.String()
}

func sortedKeys(m map[string]State) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
