// Package router selects the provider and model for a generation.
package router

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Capability is a feature a model must support to be eligible.
type Capability string

const (
	CapTextGeneration  Capability = "text_generation"
	CapChatHistory     Capability = "chat_history"
	CapImageGeneration Capability = "image_generation"
)

// ChatRequirements is the capability set every conversational
// generation needs.
var ChatRequirements = []Capability{CapTextGeneration, CapChatHistory}

// Entry is one provider×model pair with its capability set.
type Entry struct {
	Provider     string
	Model        string
	Capabilities []Capability
}

// Supports reports whether the entry satisfies every requirement.
func (e Entry) Supports(caps []Capability) bool {
	for _, want := range caps {
		found := false
		for _, have := range e.Capabilities {
			if have == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Selection is the outcome of a resolution.
type Selection struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// Decision records how a selection was made, for the audit log.
type Decision struct {
	RequestID string    `json:"request_id"`
	Timestamp time.Time `json:"timestamp"`

	RequestedProvider string       `json:"requested_provider,omitempty"`
	RequestedModel    string       `json:"requested_model,omitempty"`
	Requirements      []Capability `json:"requirements,omitempty"`

	Selected  Selection `json:"selected"`
	Reasoning string    `json:"reasoning"`
}

// Config holds router configuration.
type Config struct {
	Entries []Entry

	// MaxAuditLog bounds the in-memory decision history.
	MaxAuditLog int
}

// Router resolves provider/model preferences against the registered
// entries. Registration order is the preference order for
// requirement-based lookup.
type Router struct {
	logger  *slog.Logger
	entries []Entry

	mu          sync.RWMutex
	auditLog    []Decision
	maxAuditLog int
	stats       Stats
}

// Stats tracks resolution counts per model.
type Stats struct {
	TotalRequests int64            `json:"total_requests"`
	ModelCounts   map[string]int64 `json:"model_counts"`
	Fallbacks     int64            `json:"fallbacks"`
}

// New creates a router over the configured entries.
func New(logger *slog.Logger, cfg Config) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxAuditLog <= 0 {
		cfg.MaxAuditLog = 1000
	}
	return &Router{
		logger:      logger,
		entries:     cfg.Entries,
		maxAuditLog: cfg.MaxAuditLog,
		stats:       Stats{ModelCounts: make(map[string]int64)},
	}
}

// Entries returns the registered entries in preference order.
func (r *Router) Entries() []Entry {
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Resolve picks the model for an explicit provider/model preference.
// Either field may be empty. Unknown preferences fall back to the first
// chat-capable entry rather than failing the conversation; only an
// empty registry (or one with no chat-capable model) yields ErrNoModel.
func (r *Router) Resolve(provider, model string) (Selection, *Decision, error) {
	d := &Decision{
		RequestID:         uuid.NewString(),
		Timestamp:         time.Now(),
		RequestedProvider: provider,
		RequestedModel:    model,
		Requirements:      ChatRequirements,
	}

	var reasoning strings.Builder
	selected, ok := r.matchExplicit(provider, model, &reasoning)
	if !ok {
		fallback, err := r.firstByRequirements(ChatRequirements)
		if err != nil {
			return Selection{}, nil, err
		}
		selected = fallback
		r.mu.Lock()
		r.stats.Fallbacks++
		r.mu.Unlock()
	}

	reasoning.WriteString(fmt.Sprintf("Selected %s/%s.", selected.Provider, selected.Model))
	d.Selected = selected
	d.Reasoning = reasoning.String()
	r.recordDecision(*d)

	r.logger.Debug("model resolved",
		"request_id", d.RequestID,
		"requested_provider", provider,
		"requested_model", model,
		"provider", selected.Provider,
		"model", selected.Model,
	)
	return selected, d, nil
}

// matchExplicit resolves as much of the explicit preference as the
// registry can honor.
func (r *Router) matchExplicit(provider, model string, reasoning *strings.Builder) (Selection, bool) {
	if provider == "" && model == "" {
		reasoning.WriteString("No preference given, using capability lookup. ")
		return Selection{}, false
	}

	// Exact provider+model match first.
	for _, e := range r.entries {
		if (provider == "" || e.Provider == provider) && e.Model == model {
			reasoning.WriteString("Exact match for requested preference. ")
			return Selection{Provider: e.Provider, Model: e.Model}, true
		}
	}

	// Requested model unknown: honor the provider with its first
	// chat-capable model.
	if provider != "" {
		for _, e := range r.entries {
			if e.Provider == provider && e.Supports(ChatRequirements) {
				if model != "" {
					reasoning.WriteString(fmt.Sprintf("Model %q not registered for %s, using its default. ", model, provider))
				} else {
					reasoning.WriteString("Provider default model. ")
				}
				return Selection{Provider: e.Provider, Model: e.Model}, true
			}
		}
		reasoning.WriteString(fmt.Sprintf("Provider %q not registered, falling back. ", provider))
		return Selection{}, false
	}

	reasoning.WriteString(fmt.Sprintf("Model %q not registered with any provider, falling back. ", model))
	return Selection{}, false
}

// FindByRequirements returns the first registered entry that satisfies
// every required capability.
func (r *Router) FindByRequirements(caps []Capability) (Selection, *Decision, error) {
	d := &Decision{
		RequestID:    uuid.NewString(),
		Timestamp:    time.Now(),
		Requirements: caps,
	}

	selected, err := r.firstByRequirements(caps)
	if err != nil {
		return Selection{}, nil, err
	}

	d.Selected = selected
	d.Reasoning = fmt.Sprintf("First registered model satisfying %v.", caps)
	r.recordDecision(*d)
	return selected, d, nil
}

func (r *Router) firstByRequirements(caps []Capability) (Selection, error) {
	for _, e := range r.entries {
		if e.Supports(caps) {
			return Selection{Provider: e.Provider, Model: e.Model}, nil
		}
	}
	return Selection{}, &ErrNoModel{Requirements: caps}
}

func (r *Router) recordDecision(d Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.auditLog) >= r.maxAuditLog {
		r.auditLog = r.auditLog[1:]
	}
	r.auditLog = append(r.auditLog, d)

	r.stats.TotalRequests++
	r.stats.ModelCounts[d.Selected.Provider+"/"+d.Selected.Model]++
}

// AuditLog returns the most recent decisions, newest last.
func (r *Router) AuditLog(limit int) []Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if limit <= 0 || limit > len(r.auditLog) {
		limit = len(r.auditLog)
	}
	start := len(r.auditLog) - limit
	out := make([]Decision, limit)
	copy(out, r.auditLog[start:])
	return out
}

// Explain returns the decision for a request ID, or nil.
func (r *Router) Explain(requestID string) *Decision {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for i := len(r.auditLog) - 1; i >= 0; i-- {
		if r.auditLog[i].RequestID == requestID {
			d := r.auditLog[i]
			return &d
		}
	}
	return nil
}

// GetStats returns resolution statistics.
func (r *Router) GetStats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := Stats{
		TotalRequests: r.stats.TotalRequests,
		Fallbacks:     r.stats.Fallbacks,
		ModelCounts:   make(map[string]int64, len(r.stats.ModelCounts)),
	}
	for k, v := range r.stats.ModelCounts {
		out.ModelCounts[k] = v
	}
	return out
}
