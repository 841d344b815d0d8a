package handlers

import (
	"context"

	"gorm.io/gorm"
)

// Outcome describes what a handler did with one message.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeSkipped   Outcome = "skipped"
)

// Handler applies one decoded payload inside the batch transaction.
type Handler interface {
	Handle(ctx context.Context, tx *gorm.DB, batch *Batch, payload any) (Outcome, error)
}

// Batch remembers the deterministic keys already applied in the current
// delivery. Marks made while a message is in flight are staged and only kept
// once the message's savepoint is released.
type Batch struct {
	handled   map[string]struct{}
	surveyors map[string]bool
	staged    map[string]struct{}
	stagedSvy map[string]bool
}

// NewBatch returns an empty per-delivery key set.
func NewBatch() *Batch {
	return &Batch{
		handled:   map[string]struct{}{},
		surveyors: map[string]bool{},
		staged:    map[string]struct{}{},
		stagedSvy: map[string]bool{},
	}
}

// Handled reports whether key was applied earlier in this delivery.
func (b *Batch) Handled(key string) bool {
	if _, ok := b.handled[key]; ok {
		return true
	}
	_, ok := b.staged[key]
	return ok
}

// Mark stages key as applied.
func (b *Batch) Mark(key string) {
	b.staged[key] = struct{}{}
}

// Surveyor returns the frozen flag of a surveyor group upserted earlier in
// this delivery.
func (b *Batch) Surveyor(id string) (frozen bool, ok bool) {
	if frozen, ok = b.stagedSvy[id]; ok {
		return frozen, true
	}
	frozen, ok = b.surveyors[id]
	return frozen, ok
}

// MarkSurveyor stages a surveyor group as upserted.
func (b *Batch) MarkSurveyor(id string, frozen bool) {
	b.stagedSvy[id] = frozen
}

// Commit keeps every staged mark.
func (b *Batch) Commit() {
	for key := range b.staged {
		b.handled[key] = struct{}{}
	}
	for id, frozen := range b.stagedSvy {
		b.surveyors[id] = frozen
	}
	b.Discard()
}

// Discard drops the staged marks of a rolled back message.
func (b *Batch) Discard() {
	clear(b.staged)
	clear(b.stagedSvy)
}
