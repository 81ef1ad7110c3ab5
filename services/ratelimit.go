package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"boardapp/models"
)

// ActionKind names a rate-limited operation. The mark for a kind is
// independent of the marks for other kinds.
type ActionKind string

const (
	ActionArticleWrite ActionKind = "article_write"
	ActionArticleEdit  ActionKind = "article_edit"
	ActionCommentWrite ActionKind = "comment_write"
	ActionCommentEdit  ActionKind = "comment_edit"
)

// RateLimiter gates one successful write per (user, kind) within a window.
// Check must be called before the primary write and Mark only after it
// commits, so a failed write never consumes the cooldown.
type RateLimiter interface {
	Check(ctx context.Context, userID uint, kind ActionKind) error
	Mark(ctx context.Context, userID uint, kind ActionKind, window time.Duration) error
}

func rateLimitKey(userID uint, kind ActionKind) string {
	return fmt.Sprintf("rate_limit:%d:%s", userID, kind)
}

// RedisRateLimiter stores marks as expiring keys. The key's existence is
// the whole gate; its value carries nothing.
type RedisRateLimiter struct {
	rdb *redis.Client
}

func NewRedisRateLimiter(rdb *redis.Client) *RedisRateLimiter {
	return &RedisRateLimiter{rdb: rdb}
}

func (l *RedisRateLimiter) Check(ctx context.Context, userID uint, kind ActionKind) error {
	n, err := l.rdb.Exists(ctx, rateLimitKey(userID, kind)).Result()
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if n > 0 {
		return models.ErrRateLimited
	}
	return nil
}

func (l *RedisRateLimiter) Mark(ctx context.Context, userID uint, kind ActionKind, window time.Duration) error {
	if err := l.rdb.Set(ctx, rateLimitKey(userID, kind), "1", window).Err(); err != nil {
		return fmt.Errorf("rate limit mark: %w", err)
	}
	return nil
}

// MemoryRateLimiter keeps marks in process memory. Used in tests and as a
// single-instance fallback.
type MemoryRateLimiter struct {
	mu    sync.Mutex
	marks map[string]time.Time
	now   func() time.Time
}

func NewMemoryRateLimiter() *MemoryRateLimiter {
	return &MemoryRateLimiter{marks: make(map[string]time.Time), now: time.Now}
}

// WithClock overrides the limiter's clock. Test hook.
func (l *MemoryRateLimiter) WithClock(now func() time.Time) *MemoryRateLimiter {
	l.now = now
	return l
}

func (l *MemoryRateLimiter) Check(_ context.Context, userID uint, kind ActionKind) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	exp, ok := l.marks[rateLimitKey(userID, kind)]
	if ok && l.now().Before(exp) {
		return models.ErrRateLimited
	}
	if ok {
		delete(l.marks, rateLimitKey(userID, kind))
	}
	return nil
}

func (l *MemoryRateLimiter) Mark(_ context.Context, userID uint, kind ActionKind, window time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.marks[rateLimitKey(userID, kind)] = l.now().Add(window)
	return nil
}

// LastWriteGate derives the cooldown from the caller's most recent row
// instead of a dedicated mark, for deployments without a cache. The mark
// is implicit in the row the gated operation writes, so Mark is a no-op.
type LastWriteGate struct {
	db      *gorm.DB
	windows map[ActionKind]time.Duration
	now     func() time.Time
}

func NewLastWriteGate(db *gorm.DB, articleWindow, commentWindow time.Duration) *LastWriteGate {
	return &LastWriteGate{
		db: db,
		windows: map[ActionKind]time.Duration{
			ActionArticleWrite: articleWindow,
			ActionArticleEdit:  articleWindow,
			ActionCommentWrite: commentWindow,
			ActionCommentEdit:  commentWindow,
		},
		now: time.Now,
	}
}

func (g *LastWriteGate) Check(ctx context.Context, userID uint, kind ActionKind) error {
	table, column := "article", "created_at"
	switch kind {
	case ActionArticleWrite:
	case ActionArticleEdit:
		column = "updated_at"
	case ActionCommentWrite:
		table = "comment"
	case ActionCommentEdit:
		table, column = "comment", "updated_at"
	default:
		return fmt.Errorf("unknown action kind %q", kind)
	}

	var last time.Time
	err := g.db.WithContext(ctx).
		Table(table).
		Select(column).
		Where("author_id = ?", userID).
		Order(column + " DESC").
		Limit(1).
		Scan(&last).Error
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !last.IsZero() && g.now().Sub(last) < g.windows[kind] {
		return models.ErrRateLimited
	}
	return nil
}

func (g *LastWriteGate) Mark(context.Context, uint, ActionKind, time.Duration) error {
	return nil
}
