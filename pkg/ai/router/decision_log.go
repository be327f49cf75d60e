package router

import (
	"sync"
	"time"

	"github.com/meetflow/meetflow/pkg/models"
)

// maxDecisions bounds the in-memory log; the oldest entries are dropped once
// the cap is reached.
const maxDecisions = 10000

// DecisionLog is the append-only, time-ordered record of routing decisions.
// Entries are never mutated after append, only aggregated.
type DecisionLog struct {
	mu        sync.RWMutex
	decisions []models.RoutingDecision
}

// NewDecisionLog creates an empty log.
func NewDecisionLog() *DecisionLog {
	return &DecisionLog{}
}

// Append records a decision.
func (l *DecisionLog) Append(d models.RoutingDecision) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.decisions = append(l.decisions, d)

	if len(l.decisions) > maxDecisions {
		l.decisions = l.decisions[len(l.decisions)-maxDecisions:]
	}
}

// Len returns the number of recorded decisions.
func (l *DecisionLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return len(l.decisions)
}

// All returns a copy of every recorded decision, oldest first.
func (l *DecisionLog) All() []models.RoutingDecision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.RoutingDecision, len(l.decisions))
	copy(out, l.decisions)

	return out
}

// Since returns decisions recorded at or after t.
func (l *DecisionLog) Since(t time.Time) []models.RoutingDecision {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []models.RoutingDecision

	for _, d := range l.decisions {
		if !d.Timestamp.Before(t) {
			out = append(out, d)
		}
	}

	return out
}
