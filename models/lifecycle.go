package models

import "time"

// Lifecycle carries the columns shared by every table: primary key,
// soft-delete flag and timestamps. Rows are never physically removed;
// every read path must filter on is_deleted = false.
type Lifecycle struct {
	ID        uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	IsDeleted bool       `gorm:"not null;default:false" json:"is_deleted"`
	CreatedAt time.Time  `gorm:"index;autoCreateTime" json:"created_at"`
	UpdatedAt time.Time  `gorm:"index;autoUpdateTime" json:"updated_at"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// SoftDelete marks the row deleted. The caller still has to persist the
// change.
func (l *Lifecycle) SoftDelete() {
	now := time.Now().UTC()
	l.IsDeleted = true
	l.DeletedAt = &now
}
