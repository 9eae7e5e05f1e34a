package models

import "time"

// StatusHistory is an append-only record of one accepted status change.
// FromStatus is empty for the record written when the entity is created.
type StatusHistory struct {
	ID         int64      `db:"id" json:"id"`
	EntityType EntityKind `db:"entity_type" json:"entity_type"`
	EntityID   string     `db:"entity_id" json:"entity_id"`
	FromStatus string     `db:"from_status" json:"from_status"`
	ToStatus   string     `db:"to_status" json:"to_status"`
	Note       string     `db:"note" json:"note,omitempty"`
	ActorID    string     `db:"actor_id" json:"actor_id"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// NewStatusHistory creates a history record
func NewStatusHistory(kind EntityKind, entityID, from, to, note, actorID string) *StatusHistory {
	return &StatusHistory{
		EntityType: kind,
		EntityID:   entityID,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
		ActorID:    actorID,
		CreatedAt:  GetCurrentTime(),
	}
}
