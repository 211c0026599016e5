package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DispatchEvent records one status change of a dispatch, written in the same
// transaction as the change itself.
type DispatchEvent struct {
	ID         uuid.UUID      `gorm:"type:uuid;primary_key;" json:"id"`
	DispatchID uuid.UUID      `gorm:"type:uuid;not null;index" json:"dispatch_id"`
	Action     string         `gorm:"type:varchar(30);not null" json:"action"`
	FromStatus DispatchStatus `gorm:"type:varchar(20)" json:"from_status,omitempty"`
	ToStatus   DispatchStatus `gorm:"type:varchar(20);not null" json:"to_status"`
	ActorID    string         `gorm:"type:varchar(255);not null" json:"actor_id"`
	ActorName  string         `gorm:"type:varchar(255)" json:"actor_name,omitempty"`
	Note       string         `gorm:"type:text" json:"note,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}

func (DispatchEvent) TableName() string {
	return "dispatch_events"
}

func (e *DispatchEvent) BeforeCreate(tx *gorm.DB) (err error) {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return
}
