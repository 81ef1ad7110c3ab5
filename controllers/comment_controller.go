package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"boardapp/app"
	"boardapp/middleware"
	"boardapp/models"
	"boardapp/services"
)

type CommentController struct {
	app *app.App
}

func NewCommentController(a *app.App) *CommentController {
	return &CommentController{app: a}
}

type writeCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// activeArticle loads the live article a comment route is nested under.
func (cc *CommentController) activeArticle(c *gin.Context) (*models.Article, bool) {
	boardID, err := strconv.ParseUint(c.Param("board_id"), 10, 64)
	if err != nil {
		respondError(c, models.ErrValidation, "invalid board id")
		return nil, false
	}
	articleID, err := strconv.ParseUint(c.Param("article_id"), 10, 64)
	if err != nil {
		respondError(c, models.ErrValidation, "invalid article id")
		return nil, false
	}

	var article models.Article
	err = cc.app.DB.WithContext(c.Request.Context()).
		Where("id = ? AND board_id = ? AND is_deleted = ?", articleID, boardID, false).
		First(&article).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, models.ErrNotFound, "article not found")
		return nil, false
	}
	if err != nil {
		respondError(c, err, "internal error")
		return nil, false
	}
	return &article, true
}

func (cc *CommentController) activeComment(c *gin.Context, articleID uint) (*models.Comment, bool) {
	commentID, err := strconv.ParseUint(c.Param("comment_id"), 10, 64)
	if err != nil {
		respondError(c, models.ErrValidation, "invalid comment id")
		return nil, false
	}

	var comment models.Comment
	err = cc.app.DB.WithContext(c.Request.Context()).
		Where("id = ? AND article_id = ? AND is_deleted = ?", commentID, articleID, false).
		First(&comment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, models.ErrNotFound, "comment not found")
		return nil, false
	}
	if err != nil {
		respondError(c, err, "internal error")
		return nil, false
	}
	return &comment, true
}

func (cc *CommentController) Create(c *gin.Context) {
	var req writeCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidation, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	if err := cc.app.Limiter.Check(ctx, user.ID, services.ActionCommentWrite); err != nil {
		respondError(c, err, "comments can be posted once per cooldown window")
		return
	}

	article, ok := cc.activeArticle(c)
	if !ok {
		return
	}

	comment := models.Comment{
		Content:   req.Content,
		AuthorID:  &user.ID,
		ArticleID: article.ID,
	}
	if err := cc.app.DB.WithContext(ctx).Create(&comment).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}

	if err := cc.app.Limiter.Mark(ctx, user.ID, services.ActionCommentWrite, cc.app.Config.RateLimit.CommentWindow); err != nil {
		cc.app.Log.Warn().Err(err).Uint("user_id", user.ID).Msg("rate limit mark failed")
	}
	if err := cc.app.Publisher.Publish(ctx, services.RoutingKeyComment, services.WriteCommentMessage{
		CommentID: comment.ID,
	}); err != nil {
		cc.app.Log.Warn().Err(err).Uint("comment_id", comment.ID).Msg("publish write_comment failed")
	}

	c.JSON(http.StatusCreated, comment)
}

func (cc *CommentController) Edit(c *gin.Context) {
	var req writeCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidation, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	if err := cc.app.Limiter.Check(ctx, user.ID, services.ActionCommentEdit); err != nil {
		respondError(c, err, "comments can be edited once per cooldown window")
		return
	}

	article, ok := cc.activeArticle(c)
	if !ok {
		return
	}
	comment, ok := cc.activeComment(c, article.ID)
	if !ok {
		return
	}
	if comment.AuthorID == nil || *comment.AuthorID != user.ID {
		respondError(c, models.ErrForbidden, "only the author can edit this comment")
		return
	}

	comment.Content = req.Content
	if err := cc.app.DB.WithContext(ctx).Model(comment).Update("content", req.Content).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}

	if err := cc.app.Limiter.Mark(ctx, user.ID, services.ActionCommentEdit, cc.app.Config.RateLimit.CommentWindow); err != nil {
		cc.app.Log.Warn().Err(err).Uint("user_id", user.ID).Msg("rate limit mark failed")
	}

	c.JSON(http.StatusOK, comment)
}

func (cc *CommentController) Delete(c *gin.Context) {
	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	if err := cc.app.Limiter.Check(ctx, user.ID, services.ActionCommentEdit); err != nil {
		respondError(c, err, "comments can be deleted once per cooldown window")
		return
	}

	article, ok := cc.activeArticle(c)
	if !ok {
		return
	}
	comment, ok := cc.activeComment(c, article.ID)
	if !ok {
		return
	}
	if comment.AuthorID == nil || *comment.AuthorID != user.ID {
		respondError(c, models.ErrForbidden, "only the author can delete this comment")
		return
	}

	comment.SoftDelete()
	if err := cc.app.DB.WithContext(ctx).Save(comment).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}

	if err := cc.app.Limiter.Mark(ctx, user.ID, services.ActionCommentEdit, cc.app.Config.RateLimit.CommentWindow); err != nil {
		cc.app.Log.Warn().Err(err).Uint("user_id", user.ID).Msg("rate limit mark failed")
	}

	c.JSON(http.StatusOK, "comment is deleted")
}
