package models

type Comment struct {
	Lifecycle
	Content   string `gorm:"type:text;not null" json:"content"`
	AuthorID  *uint  `gorm:"index" json:"author_id"`
	ArticleID uint   `gorm:"index;not null" json:"article_id"`
	LikeCount int    `gorm:"not null;default:0" json:"like_count"`
}

func (Comment) TableName() string { return "comment" }
