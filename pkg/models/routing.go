package models

import "time"

// RoutingDecision records one AI routing attempt. Decisions are immutable
// once recorded; the router appends them to a time-ordered log which is only
// ever aggregated, never mutated.
type RoutingDecision struct {
	ID                string        `json:"id"`
	Function          string        `json:"function"`
	RequestedProvider string        `json:"requested_provider"`
	ActualProvider    string        `json:"actual_provider"`
	FallbackUsed      bool          `json:"fallback_used"`
	Latency           time.Duration `json:"latency"`
	Success           bool          `json:"success"`
	Error             string        `json:"error,omitempty"`
	Timestamp         time.Time     `json:"timestamp"`
}

// Message is one turn of the conversation history shared with the AI layer.
type Message struct {
	Role      string    `json:"role"` // "user" or "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}
