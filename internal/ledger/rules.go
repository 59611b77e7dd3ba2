package ledger

import (
	"fmt"
	"strings"

	"approval-ledger/internal/model"
)

// Transitions is an allowed-successors table. Same-status calls are handled
// before the table is consulted and never need an entry.
type Transitions struct {
	name    string
	allowed map[model.Status]map[model.Status]bool
}

// NewTransitions builds a table from a successor list per status.
func NewTransitions(name string, successors map[model.Status][]model.Status) Transitions {
	allowed := make(map[model.Status]map[model.Status]bool, len(successors))
	for from, list := range successors {
		set := make(map[model.Status]bool, len(list))
		for _, to := range list {
			set[to] = true
		}
		allowed[from] = set
	}
	return Transitions{name: name, allowed: allowed}
}

// Name identifies the table in logs and config.
func (t Transitions) Name() string {
	return t.name
}

// Allows reports whether from -> to is a legal move.
func (t Transitions) Allows(from, to model.Status) bool {
	return t.allowed[from][to]
}

// Successors lists the legal targets of from in forward order.
func (t Transitions) Successors(from model.Status) []model.Status {
	var out []model.Status
	for _, s := range model.AllStatuses {
		if t.allowed[from][s] {
			out = append(out, s)
		}
	}
	return out
}

const (
	RulesForward    = "forward"
	RulesSequential = "sequential"
	RulesPermissive = "permissive"
)

// ForwardOnly lets a document jump ahead any number of stages but never back.
// Reject is reachable up to Approved, Close from every non-terminal status.
func ForwardOnly() Transitions {
	succ := make(map[model.Status][]model.Status)
	for from, fromRank := range forwardRank {
		for to, toRank := range forwardRank {
			if toRank > fromRank {
				succ[from] = append(succ[from], to)
			}
		}
		succ[from] = append(succ[from], absorbingFrom(from)...)
	}
	return NewTransitions(RulesForward, succ)
}

// Sequential allows only the single next stage plus the absorbing states.
func Sequential() Transitions {
	succ := make(map[model.Status][]model.Status)
	for from, fromRank := range forwardRank {
		for to, toRank := range forwardRank {
			if toRank == fromRank+1 {
				succ[from] = append(succ[from], to)
			}
		}
		succ[from] = append(succ[from], absorbingFrom(from)...)
	}
	return NewTransitions(RulesSequential, succ)
}

// Permissive accepts any overwrite, matching the legacy dashboards.
func Permissive() Transitions {
	succ := make(map[model.Status][]model.Status, len(model.AllStatuses))
	for _, from := range model.AllStatuses {
		for _, to := range model.AllStatuses {
			if from != to {
				succ[from] = append(succ[from], to)
			}
		}
	}
	return NewTransitions(RulesPermissive, succ)
}

// A received document can still be closed but no longer rejected.
func absorbingFrom(from model.Status) []model.Status {
	if from == model.StatusReceived {
		return []model.Status{model.StatusClose}
	}
	return []model.Status{model.StatusReject, model.StatusClose}
}

// ParseTransitions resolves a table by its config name. Empty means forward.
func ParseTransitions(name string) (Transitions, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", RulesForward:
		return ForwardOnly(), nil
	case RulesSequential:
		return Sequential(), nil
	case RulesPermissive:
		return Permissive(), nil
	default:
		return Transitions{}, fmt.Errorf("%w: unknown transition table %q", ErrMalformedInput, name)
	}
}
