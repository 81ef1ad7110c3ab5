package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Document-store collections. History collections are append-only event
// logs; notifications are written by the fan-out step.
const (
	ViewHistoryCollection  = "adViewHistory"
	ClickHistoryCollection = "adClickHistory"
	NotificationCollection = "userNotificationHistory"
)

// HistoryRecord is one raw view or click event. Username is nil for
// anonymous visitors, whose ClientIP is the distinguishing key instead.
// IsTrueView is set on view events only; click documents omit the field.
type HistoryRecord struct {
	AdID        uint      `bson:"ad_id" json:"ad_id"`
	Username    *string   `bson:"username" json:"username"`
	ClientIP    string    `bson:"client_ip" json:"client_ip"`
	IsTrueView  *bool     `bson:"is_true_view,omitempty" json:"is_true_view,omitempty"`
	CreatedDate time.Time `bson:"created_date" json:"created_date"`
}

// Notification is one fan-out document, unread at creation.
type Notification struct {
	Title       string    `bson:"title" json:"title"`
	Content     string    `bson:"content" json:"content"`
	UserID      uint      `bson:"userId" json:"user_id"`
	IsRead      bool      `bson:"isRead" json:"is_read"`
	CreatedDate time.Time `bson:"createdDate" json:"created_date"`
	UpdatedDate time.Time `bson:"updatedDate" json:"updated_date"`
}

// VisitorCount is one row of the unique-visitor aggregation.
type VisitorCount struct {
	AdID  uint `bson:"ad_id" json:"ad_id"`
	Count int  `bson:"count" json:"count"`
}

// DocStore is the document-store surface: append-only event and
// notification writes plus the daily aggregation read.
type DocStore interface {
	InsertHistory(ctx context.Context, collection string, rec HistoryRecord) error
	InsertNotification(ctx context.Context, n Notification) error
	// UniqueVisitors counts distinct visitors per ad within [start, end):
	// identified events deduplicated by username, anonymous ones by client
	// IP, partition counts summed. Ads with no events are absent.
	UniqueVisitors(ctx context.Context, collection string, start, end time.Time) ([]VisitorCount, error)
}

// YesterdayRange returns [yesterday 00:00, today 00:00) in UTC, the fixed
// window every aggregation uses.
func YesterdayRange(now time.Time) (time.Time, time.Time) {
	today := now.UTC().Truncate(24 * time.Hour)
	return today.AddDate(0, 0, -1), today
}

// MongoStore backs DocStore with a MongoDB database.
type MongoStore struct {
	db *mongo.Database
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

func (s *MongoStore) InsertHistory(ctx context.Context, collection string, rec HistoryRecord) error {
	if _, err := s.db.Collection(collection).InsertOne(ctx, rec); err != nil {
		return fmt.Errorf("insert %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) InsertNotification(ctx context.Context, n Notification) error {
	if _, err := s.db.Collection(NotificationCollection).InsertOne(ctx, n); err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

func (s *MongoStore) UniqueVisitors(ctx context.Context, collection string, start, end time.Time) ([]VisitorCount, error) {
	identified, err := s.aggregate(ctx, collection, bson.M{
		"created_date": bson.M{"$gte": start, "$lt": end},
		"username":     bson.M{"$exists": true, "$ne": nil},
	}, "$username")
	if err != nil {
		return nil, err
	}

	anonymous, err := s.aggregate(ctx, collection, bson.M{
		"created_date": bson.M{"$gte": start, "$lt": end},
		"$or": bson.A{
			bson.M{"username": bson.M{"$exists": false}},
			bson.M{"username": nil},
		},
	}, "$client_ip")
	if err != nil {
		return nil, err
	}

	total := make(map[uint]int)
	for _, r := range identified {
		total[r.AdID] += r.Count
	}
	for _, r := range anonymous {
		total[r.AdID] += r.Count
	}

	out := make([]VisitorCount, 0, len(total))
	for adID, count := range total {
		out = append(out, VisitorCount{AdID: adID, Count: count})
	}
	return out, nil
}

func (s *MongoStore) aggregate(ctx context.Context, collection string, match bson.M, distinctField string) ([]VisitorCount, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":         "$ad_id",
			"unique_vals": bson.M{"$addToSet": distinctField},
		}}},
		{{Key: "$project", Value: bson.M{
			"ad_id": "$_id",
			"count": bson.M{"$size": "$unique_vals"},
			"_id":   0,
		}}},
	}

	cursor, err := s.db.Collection(collection).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("aggregate %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var results []VisitorCount
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("decode %s aggregation: %w", collection, err)
	}
	return results, nil
}

// MemoryDocStore is the in-process DocStore used by tests.
type MemoryDocStore struct {
	mu            sync.Mutex
	histories     map[string][]HistoryRecord
	notifications []Notification
}

func NewMemoryDocStore() *MemoryDocStore {
	return &MemoryDocStore{histories: make(map[string][]HistoryRecord)}
}

func (s *MemoryDocStore) InsertHistory(_ context.Context, collection string, rec HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.histories[collection] = append(s.histories[collection], rec)
	return nil
}

func (s *MemoryDocStore) InsertNotification(_ context.Context, n Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *MemoryDocStore) UniqueVisitors(_ context.Context, collection string, start, end time.Time) ([]VisitorCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	identified := make(map[uint]map[string]struct{})
	anonymous := make(map[uint]map[string]struct{})
	for _, rec := range s.histories[collection] {
		if rec.CreatedDate.Before(start) || !rec.CreatedDate.Before(end) {
			continue
		}
		buckets, key := anonymous, rec.ClientIP
		if rec.Username != nil {
			buckets, key = identified, *rec.Username
		}
		if buckets[rec.AdID] == nil {
			buckets[rec.AdID] = make(map[string]struct{})
		}
		buckets[rec.AdID][key] = struct{}{}
	}

	total := make(map[uint]int)
	for adID, set := range identified {
		total[adID] += len(set)
	}
	for adID, set := range anonymous {
		total[adID] += len(set)
	}

	out := make([]VisitorCount, 0, len(total))
	for adID, count := range total {
		out = append(out, VisitorCount{AdID: adID, Count: count})
	}
	return out, nil
}

// Histories returns the recorded events for a collection. Test hook.
func (s *MemoryDocStore) Histories(collection string) []HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]HistoryRecord(nil), s.histories[collection]...)
}

// Notifications returns the recorded notifications. Test hook.
func (s *MemoryDocStore) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Notification(nil), s.notifications...)
}
