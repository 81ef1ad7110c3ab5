package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"boardapp/app"
	"boardapp/config"
	"boardapp/models"
	"boardapp/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testApp bundles an App wired to a mocked database and in-memory
// derived stores, plus handles to those stores for assertions.
type testApp struct {
	app   *app.App
	mock  sqlmock.Sqlmock
	limit *services.MemoryRateLimiter
	index *services.MemoryIndex
	cache *services.MemoryAdCache
	docs  *services.MemoryDocStore
	queue *services.MemoryPublisher
	now   time.Time
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(gormmysql.New(gormmysql.Config{
		Conn:                      sqlDB,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Jwt.SecretKey = "test-secret"
	cfg.Jwt.ExpireMinutes = 60
	cfg.RateLimit.ArticleWindow = 5 * time.Minute
	cfg.RateLimit.CommentWindow = time.Minute
	cfg.AdCacheTTL = time.Hour

	ta := &testApp{mock: mock, now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	ta.limit = services.NewMemoryRateLimiter().WithClock(func() time.Time { return ta.now })
	ta.index = services.NewMemoryIndex()
	ta.cache = services.NewMemoryAdCache().WithClock(func() time.Time { return ta.now })
	ta.docs = services.NewMemoryDocStore()
	ta.queue = services.NewMemoryPublisher()

	a := &app.App{
		Config:    cfg,
		Log:       zerolog.Nop(),
		DB:        db,
		Limiter:   ta.limit,
		Cache:     ta.cache,
		Index:     ta.index,
		Docs:      ta.docs,
		Publisher: ta.queue,
		Blacklist: services.NewMemoryBlacklist(),
	}
	a.Auth = services.NewAuth(cfg.Jwt.SecretKey, time.Duration(cfg.Jwt.ExpireMinutes)*time.Minute)
	a.Notifier = services.NewNotifier(db, ta.docs)
	ta.app = a
	return ta
}

func (ta *testApp) advance(d time.Duration) {
	ta.now = ta.now.Add(d)
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	payload, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(payload)
}

func doRequest(t *testing.T, r *gin.Engine, method, path string, body *bytes.Reader) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequest(method, path, body)
	} else {
		req, err = http.NewRequest(method, path, nil)
	}
	require.NoError(t, err)
	req.RemoteAddr = "192.0.2.1:1234"
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeJSON[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func member(id uint, username string) *models.User {
	u := &models.User{Username: username, Email: username + "@example.com", Role: models.RoleMember}
	u.ID = id
	return u
}

func admin(id uint, username string) *models.User {
	u := member(id, username)
	u.Role = models.RoleAdmin
	return u
}

// failingIndex errors on every call, standing in for an unreachable
// search backend.
type failingIndex struct{}

func (failingIndex) Index(context.Context, *models.Article) error { return errIndexDown }
func (failingIndex) Remove(context.Context, uint) error           { return errIndexDown }
func (failingIndex) Search(context.Context, uint, string) ([]uint, error) {
	return nil, errIndexDown
}

// failingDocStore errors on every call, standing in for an unreachable
// document store.
type failingDocStore struct{}

func (failingDocStore) InsertHistory(context.Context, string, services.HistoryRecord) error {
	return errDocsDown
}
func (failingDocStore) InsertNotification(context.Context, services.Notification) error {
	return errDocsDown
}
func (failingDocStore) UniqueVisitors(context.Context, string, time.Time, time.Time) ([]services.VisitorCount, error) {
	return nil, errDocsDown
}

var (
	errIndexDown = errors.New("index unavailable")
	errDocsDown  = errors.New("document store unavailable")
)

var (
	boardColumns   = []string{"id", "is_deleted", "created_at", "updated_at", "deleted_at", "title", "description"}
	articleColumns = []string{"id", "is_deleted", "created_at", "updated_at", "deleted_at", "title", "content", "author_id", "board_id"}
	commentColumns = []string{"id", "is_deleted", "created_at", "updated_at", "deleted_at", "content", "author_id", "article_id", "like_count"}
	adColumns      = []string{"id", "is_deleted", "created_at", "updated_at", "deleted_at", "title", "content", "is_visible", "start_date", "end_date", "view_count", "click_count"}
	userColumns    = []string{"id", "is_deleted", "created_at", "updated_at", "deleted_at", "username", "email", "hashed_password", "role", "last_login"}
)

func boardRow(id uint, title string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(boardColumns).AddRow(id, false, now, now, nil, title, "")
}

func articleRow(id, authorID, boardID uint, title, content string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(articleColumns).AddRow(id, false, now, now, nil, title, content, authorID, boardID)
}

func commentRow(id, authorID, articleID uint, content string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(commentColumns).AddRow(id, false, now, now, nil, content, authorID, articleID, 0)
}

func adRow(id uint, title string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(adColumns).AddRow(id, false, now, now, nil, title, "ad content", true, nil, nil, 0, 0)
}
