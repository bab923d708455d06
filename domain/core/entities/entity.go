// Package entities defines the persisted domain objects. These are plain
// data structs; persistence behavior lives behind the repository interfaces
// so that both storage backends share one model.
package entities

import (
	"time"

	"github.com/google/uuid"
)

// Meta carries the system-managed fields every persisted entity has. The
// identifier is assigned once at first save and never reassigned; Version is
// the optimistic-concurrency marker and advances with UpdatedAt on every
// successful mutation.
type Meta struct {
	ID        uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	Version   int64
}

// IsNew reports whether the entity has not been saved yet.
func (m *Meta) IsNew() bool {
	return m.ID == uuid.Nil
}

// StampForCreate assigns the identifier and initial timestamps. When the
// caller supplied an identifier it is kept, so logical entities keep the same
// id across backends.
func (m *Meta) StampForCreate(now time.Time) {
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	now = now.UTC()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.Version = 1
}

// StampForUpdate advances the update timestamp and version. UpdatedAt must
// strictly increase, so a clock that has not moved past the previous value
// is nudged forward.
func (m *Meta) StampForUpdate(now time.Time) {
	now = now.UTC()
	if !now.After(m.UpdatedAt) {
		now = m.UpdatedAt.Add(time.Nanosecond)
	}
	m.UpdatedAt = now
	m.Version++
}
