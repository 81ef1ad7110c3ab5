package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"boardapp/models"
)

const (
	articleNotificationTitle = "Your article has been posted."
	commentNotificationTitle = "A new comment has been posted."
)

// Notifier turns relayed write events into notification documents. It runs
// after the triggering write, possibly long after, so every path re-checks
// the triggering row and treats a vanished or soft-deleted row as success.
type Notifier struct {
	db   *gorm.DB
	docs DocStore
	now  func() time.Time
}

func NewNotifier(db *gorm.DB, docs DocStore) *Notifier {
	return &Notifier{db: db, docs: docs, now: time.Now}
}

// ArticleWritten notifies the triggering user about their own article.
func (n *Notifier) ArticleWritten(ctx context.Context, articleID, userID uint) error {
	var article models.Article
	err := n.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", articleID, false).
		First(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load article %d: %w", articleID, err)
	}

	now := n.now().UTC()
	return n.docs.InsertNotification(ctx, Notification{
		Title:       articleNotificationTitle,
		Content:     article.Title,
		UserID:      userID,
		IsRead:      false,
		CreatedDate: now,
		UpdatedDate: now,
	})
}

// CommentWritten notifies everyone involved with the comment's article:
// the comment author, the article author and every other live commenter,
// as a deduplicated set.
func (n *Notifier) CommentWritten(ctx context.Context, commentID uint) error {
	var comment models.Comment
	err := n.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", commentID, false).
		First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load comment %d: %w", commentID, err)
	}

	recipients := make(map[uint]struct{})
	if comment.AuthorID != nil {
		recipients[*comment.AuthorID] = struct{}{}
	}

	var article models.Article
	err = n.db.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", comment.ArticleID, false).
		First(&article).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("load article %d: %w", comment.ArticleID, err)
	}
	if err == nil && article.AuthorID != nil {
		recipients[*article.AuthorID] = struct{}{}
	}

	var others []models.Comment
	err = n.db.WithContext(ctx).
		Where("article_id = ? AND is_deleted = ?", comment.ArticleID, false).
		Find(&others).Error
	if err != nil {
		return fmt.Errorf("load commenters for article %d: %w", comment.ArticleID, err)
	}
	for _, c := range others {
		if c.AuthorID != nil {
			recipients[*c.AuthorID] = struct{}{}
		}
	}

	now := n.now().UTC()
	for userID := range recipients {
		err := n.docs.InsertNotification(ctx, Notification{
			Title:       commentNotificationTitle,
			Content:     comment.Content,
			UserID:      userID,
			IsRead:      false,
			CreatedDate: now,
			UpdatedDate: now,
		})
		if err != nil {
			return err
		}
	}
	return nil
}
