package models

type Article struct {
	Lifecycle
	Title    string `gorm:"size:200;not null" json:"title"`
	Content  string `gorm:"type:text;not null" json:"content"`
	AuthorID *uint  `gorm:"index" json:"author_id"`
	BoardID  *uint  `gorm:"index" json:"board_id"`
}

func (Article) TableName() string { return "article" }
