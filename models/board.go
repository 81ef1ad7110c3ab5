package models

type Board struct {
	Lifecycle
	Title       string `gorm:"size:100;not null" json:"title"`
	Description string `gorm:"size:500;not null" json:"description"`
}

func (Board) TableName() string { return "board" }
