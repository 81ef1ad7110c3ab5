package models

import "time"

type Advertisement struct {
	Lifecycle
	Title      string     `gorm:"size:50;not null" json:"title"`
	Content    string     `gorm:"type:mediumtext;not null" json:"content"`
	IsVisible  bool       `gorm:"not null;default:true" json:"is_visible"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	ViewCount  int        `gorm:"not null;default:0" json:"view_count"`
	ClickCount int        `gorm:"not null;default:0" json:"click_count"`
}

func (Advertisement) TableName() string { return "advertisement" }
