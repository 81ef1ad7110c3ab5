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

const articlePageSize = 10

type ArticleController struct {
	app *app.App
}

func NewArticleController(a *app.App) *ArticleController {
	return &ArticleController{app: a}
}

type writeArticleRequest struct {
	Title   string `json:"title" binding:"required"`
	Content string `json:"content" binding:"required"`
}

type editArticleRequest struct {
	Title   *string `json:"title"`
	Content *string `json:"content"`
}

type articleDetailResponse struct {
	models.Article
	Comments []models.Comment `json:"comments"`
}

func (ac *ArticleController) boardID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("board_id"), 10, 64)
	if err != nil {
		respondError(c, models.ErrValidation, "invalid board id")
		return 0, false
	}
	return uint(id), true
}

func (ac *ArticleController) activeArticle(c *gin.Context, boardID uint) (*models.Article, bool) {
	articleID, err := strconv.ParseUint(c.Param("article_id"), 10, 64)
	if err != nil {
		respondError(c, models.ErrValidation, "invalid article id")
		return nil, false
	}

	var article models.Article
	err = ac.app.DB.WithContext(c.Request.Context()).
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

func (ac *ArticleController) Create(c *gin.Context) {
	boardID, ok := ac.boardID(c)
	if !ok {
		return
	}

	var req writeArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidation, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	var board models.Board
	err := ac.app.DB.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", boardID, false).
		First(&board).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, models.ErrNotFound, "board not found")
		return
	}
	if err != nil {
		respondError(c, err, "internal error")
		return
	}

	user := middleware.CurrentUser(c)
	if err := ac.app.Limiter.Check(ctx, user.ID, services.ActionArticleWrite); err != nil {
		respondError(c, err, "articles can be posted once per cooldown window")
		return
	}

	article := models.Article{
		Title:    req.Title,
		Content:  req.Content,
		AuthorID: &user.ID,
		BoardID:  &boardID,
	}
	if err := ac.app.DB.WithContext(ctx).Create(&article).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}

	// The write is committed; everything below is best effort.
	ac.markAndSync(c, user.ID, services.ActionArticleWrite, &article)

	if err := ac.app.Publisher.Publish(ctx, services.RoutingKeyArticle, services.WriteArticleMessage{
		ArticleID: article.ID,
		UserID:    user.ID,
	}); err != nil {
		ac.app.Log.Warn().Err(err).Uint("article_id", article.ID).Msg("publish write_article failed")
	}

	c.JSON(http.StatusCreated, article)
}

// markAndSync sets the cooldown mark and re-indexes after a committed
// write. Failures here never fail the request.
func (ac *ArticleController) markAndSync(c *gin.Context, userID uint, kind services.ActionKind, article *models.Article) {
	ctx := c.Request.Context()
	if err := ac.app.Limiter.Mark(ctx, userID, kind, ac.app.Config.RateLimit.ArticleWindow); err != nil {
		ac.app.Log.Warn().Err(err).Uint("user_id", userID).Msg("rate limit mark failed")
	}
	if err := ac.app.Index.Index(ctx, article); err != nil {
		ac.app.Log.Warn().Err(err).Uint("article_id", article.ID).Msg("article indexing failed")
	}
}

func (ac *ArticleController) List(c *gin.Context) {
	boardID, ok := ac.boardID(c)
	if !ok {
		return
	}

	query := ac.app.DB.WithContext(c.Request.Context()).
		Where("board_id = ? AND is_deleted = ?", boardID, false)

	if lastID := c.Query("last_id"); lastID != "" {
		id, err := strconv.ParseUint(lastID, 10, 64)
		if err != nil {
			respondError(c, models.ErrValidation, "invalid last_id")
			return
		}
		query = query.Where("id < ?", id)
	} else if firstID := c.Query("first_id"); firstID != "" {
		id, err := strconv.ParseUint(firstID, 10, 64)
		if err != nil {
			respondError(c, models.ErrValidation, "invalid first_id")
			return
		}
		query = query.Where("id > ?", id)
	}

	var articles []models.Article
	if err := query.Order("id DESC").Limit(articlePageSize).Find(&articles).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}
	c.JSON(http.StatusOK, articles)
}

func (ac *ArticleController) Get(c *gin.Context) {
	boardID, ok := ac.boardID(c)
	if !ok {
		return
	}
	article, ok := ac.activeArticle(c, boardID)
	if !ok {
		return
	}

	var comments []models.Comment
	err := ac.app.DB.WithContext(c.Request.Context()).
		Where("article_id = ? AND is_deleted = ?", article.ID, false).
		Find(&comments).Error
	if err != nil {
		respondError(c, err, "internal error")
		return
	}
	if comments == nil {
		comments = []models.Comment{}
	}

	c.JSON(http.StatusOK, articleDetailResponse{Article: *article, Comments: comments})
}

// Search matches the keyword against article content within one board.
// The index is consulted first; hits are re-checked against the relational
// store so stale index entries never surface deleted articles.
func (ac *ArticleController) Search(c *gin.Context) {
	boardID, ok := ac.boardID(c)
	if !ok {
		return
	}

	keyword := c.Query("keyword")
	if keyword == "" {
		respondError(c, models.ErrValidation, "keyword is required")
		return
	}

	ctx := c.Request.Context()
	ids, err := ac.app.Index.Search(ctx, boardID, keyword)
	if err != nil {
		respondError(c, err, "internal error")
		return
	}
	if len(ids) == 0 {
		c.JSON(http.StatusOK, []models.Article{})
		return
	}

	var articles []models.Article
	err = ac.app.DB.WithContext(ctx).
		Where("id IN ? AND board_id = ? AND is_deleted = ?", ids, boardID, false).
		Find(&articles).Error
	if err != nil {
		respondError(c, err, "internal error")
		return
	}
	if articles == nil {
		articles = []models.Article{}
	}
	c.JSON(http.StatusOK, articles)
}

func (ac *ArticleController) Edit(c *gin.Context) {
	boardID, ok := ac.boardID(c)
	if !ok {
		return
	}

	var req editArticleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidation, "invalid request body")
		return
	}

	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	if err := ac.app.Limiter.Check(ctx, user.ID, services.ActionArticleEdit); err != nil {
		respondError(c, err, "articles can be edited once per cooldown window")
		return
	}

	article, ok := ac.activeArticle(c, boardID)
	if !ok {
		return
	}
	if article.AuthorID == nil || *article.AuthorID != user.ID {
		respondError(c, models.ErrForbidden, "only the author can edit this article")
		return
	}

	// A no-op edit returns the article untouched: no cooldown mark, no
	// re-index.
	if req.Title == nil && req.Content == nil {
		c.JSON(http.StatusOK, article)
		return
	}

	updates := map[string]any{}
	if req.Title != nil {
		article.Title = *req.Title
		updates["title"] = *req.Title
	}
	if req.Content != nil {
		article.Content = *req.Content
		updates["content"] = *req.Content
	}
	if err := ac.app.DB.WithContext(ctx).Model(article).Updates(updates).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}

	ac.markAndSync(c, user.ID, services.ActionArticleEdit, article)

	c.JSON(http.StatusOK, article)
}

func (ac *ArticleController) Delete(c *gin.Context) {
	boardID, ok := ac.boardID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	user := middleware.CurrentUser(c)
	if err := ac.app.Limiter.Check(ctx, user.ID, services.ActionArticleEdit); err != nil {
		respondError(c, err, "articles can be deleted once per cooldown window")
		return
	}

	article, ok := ac.activeArticle(c, boardID)
	if !ok {
		return
	}
	if article.AuthorID == nil || *article.AuthorID != user.ID {
		respondError(c, models.ErrForbidden, "only the author can delete this article")
		return
	}

	article.SoftDelete()
	if err := ac.app.DB.WithContext(ctx).Save(article).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}

	if err := ac.app.Limiter.Mark(ctx, user.ID, services.ActionArticleEdit, ac.app.Config.RateLimit.ArticleWindow); err != nil {
		ac.app.Log.Warn().Err(err).Uint("user_id", user.ID).Msg("rate limit mark failed")
	}
	if err := ac.app.Index.Remove(ctx, article.ID); err != nil {
		ac.app.Log.Warn().Err(err).Uint("article_id", article.ID).Msg("search document removal failed")
	}

	c.JSON(http.StatusOK, "article is deleted")
}
