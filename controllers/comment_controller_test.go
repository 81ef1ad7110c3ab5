package controllers

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boardapp/middleware"
	"boardapp/models"
	"boardapp/services"
)

func commentRouter(ta *testApp, user *models.User) *gin.Engine {
	r := gin.New()
	cc := NewCommentController(ta.app)
	g := r.Group("/boards/:board_id/articles/:article_id/comments", middleware.WithUser(user))
	g.POST("", cc.Create)
	g.PUT("/:comment_id", cc.Edit)
	g.DELETE("/:comment_id", cc.Delete)
	return r
}

func TestCommentCreate(t *testing.T) {
	ta := newTestApp(t)
	r := commentRouter(ta, member(9, "carol"))

	ta.mock.ExpectQuery("SELECT (.+) FROM `article` WHERE id = \\? AND board_id = \\?").
		WillReturnRows(articleRow(12, 7, 3, "Hi", "hello"))
	ta.mock.ExpectExec("INSERT INTO `comment`").
		WillReturnResult(sqlmock.NewResult(44, 1))

	w := doRequest(t, r, http.MethodPost, "/boards/3/articles/12/comments",
		jsonBody(t, gin.H{"content": "nice"}))
	require.Equal(t, http.StatusCreated, w.Code)

	comment := decodeJSON[models.Comment](t, w)
	assert.Equal(t, uint(44), comment.ID)
	assert.Equal(t, uint(12), comment.ArticleID)

	published := ta.queue.Published()
	require.Len(t, published, 1)
	assert.Equal(t, services.RoutingKeyComment, published[0].RoutingKey)
	msg, ok := published[0].Message.(services.WriteCommentMessage)
	require.True(t, ok)
	assert.Equal(t, uint(44), msg.CommentID)
}

func TestCommentCreateCooldown(t *testing.T) {
	ta := newTestApp(t)
	r := commentRouter(ta, member(9, "carol"))

	ta.mock.ExpectQuery("SELECT (.+) FROM `article`").
		WillReturnRows(articleRow(12, 7, 3, "Hi", "hello"))
	ta.mock.ExpectExec("INSERT INTO `comment`").
		WillReturnResult(sqlmock.NewResult(44, 1))

	body := gin.H{"content": "nice"}
	w := doRequest(t, r, http.MethodPost, "/boards/3/articles/12/comments", jsonBody(t, body))
	require.Equal(t, http.StatusCreated, w.Code)

	// The comment cooldown rejects before any database work.
	w = doRequest(t, r, http.MethodPost, "/boards/3/articles/12/comments", jsonBody(t, body))
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NoError(t, ta.mock.ExpectationsWereMet())

	ta.advance(time.Minute + time.Second)
	ta.mock.ExpectQuery("SELECT (.+) FROM `article`").
		WillReturnRows(articleRow(12, 7, 3, "Hi", "hello"))
	ta.mock.ExpectExec("INSERT INTO `comment`").
		WillReturnResult(sqlmock.NewResult(45, 1))
	w = doRequest(t, r, http.MethodPost, "/boards/3/articles/12/comments", jsonBody(t, body))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCommentCreateFailedInsertDoesNotConsumeCooldown(t *testing.T) {
	ta := newTestApp(t)
	r := commentRouter(ta, member(9, "carol"))

	ta.mock.ExpectQuery("SELECT (.+) FROM `article`").
		WillReturnRows(articleRow(12, 7, 3, "Hi", "hello"))
	ta.mock.ExpectExec("INSERT INTO `comment`").
		WillReturnError(errors.New("connection reset"))

	body := gin.H{"content": "nice"}
	w := doRequest(t, r, http.MethodPost, "/boards/3/articles/12/comments", jsonBody(t, body))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, ta.queue.Published())

	// The failed write left no cooldown mark: an immediate retry succeeds.
	ta.mock.ExpectQuery("SELECT (.+) FROM `article`").
		WillReturnRows(articleRow(12, 7, 3, "Hi", "hello"))
	ta.mock.ExpectExec("INSERT INTO `comment`").
		WillReturnResult(sqlmock.NewResult(44, 1))
	w = doRequest(t, r, http.MethodPost, "/boards/3/articles/12/comments", jsonBody(t, body))
	assert.Equal(t, http.StatusCreated, w.Code)
	require.NoError(t, ta.mock.ExpectationsWereMet())
}

func TestCommentCreateCooldownIndependentOfArticles(t *testing.T) {
	ta := newTestApp(t)

	// Posting an article does not consume the comment cooldown.
	ar := articleRouter(ta, member(9, "carol"))
	ta.mock.ExpectQuery("SELECT (.+) FROM `board`").WillReturnRows(boardRow(3, "general"))
	ta.mock.ExpectExec("INSERT INTO `article`").WillReturnResult(sqlmock.NewResult(12, 1))
	w := doRequest(t, ar, http.MethodPost, "/boards/3/articles",
		jsonBody(t, gin.H{"title": "Hi", "content": "hello"}))
	require.Equal(t, http.StatusCreated, w.Code)

	cr := commentRouter(ta, member(9, "carol"))
	ta.mock.ExpectQuery("SELECT (.+) FROM `article`").
		WillReturnRows(articleRow(12, 9, 3, "Hi", "hello"))
	ta.mock.ExpectExec("INSERT INTO `comment`").
		WillReturnResult(sqlmock.NewResult(44, 1))
	w = doRequest(t, cr, http.MethodPost, "/boards/3/articles/12/comments",
		jsonBody(t, gin.H{"content": "first"}))
	assert.Equal(t, http.StatusCreated, w.Code)
}

func TestCommentEditNotAuthor(t *testing.T) {
	ta := newTestApp(t)
	r := commentRouter(ta, member(8, "bob"))

	ta.mock.ExpectQuery("SELECT (.+) FROM `article`").
		WillReturnRows(articleRow(12, 7, 3, "Hi", "hello"))
	ta.mock.ExpectQuery("SELECT (.+) FROM `comment`").
		WillReturnRows(commentRow(44, 9, 12, "nice"))

	w := doRequest(t, r, http.MethodPut, "/boards/3/articles/12/comments/44",
		jsonBody(t, gin.H{"content": "hijack"}))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCommentDelete(t *testing.T) {
	ta := newTestApp(t)
	r := commentRouter(ta, member(9, "carol"))

	ta.mock.ExpectQuery("SELECT (.+) FROM `article`").
		WillReturnRows(articleRow(12, 7, 3, "Hi", "hello"))
	ta.mock.ExpectQuery("SELECT (.+) FROM `comment`").
		WillReturnRows(commentRow(44, 9, 12, "nice"))
	ta.mock.ExpectExec("UPDATE `comment` SET").
		WillReturnResult(sqlmock.NewResult(0, 1))

	w := doRequest(t, r, http.MethodDelete, "/boards/3/articles/12/comments/44", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "comment is deleted")
}

func TestCommentDeleteGoneIs404(t *testing.T) {
	ta := newTestApp(t)
	r := commentRouter(ta, member(9, "carol"))

	ta.mock.ExpectQuery("SELECT (.+) FROM `article`").
		WillReturnRows(articleRow(12, 7, 3, "Hi", "hello"))
	ta.mock.ExpectQuery("SELECT (.+) FROM `comment`").
		WillReturnRows(sqlmock.NewRows(commentColumns))

	w := doRequest(t, r, http.MethodDelete, "/boards/3/articles/12/comments/44", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
