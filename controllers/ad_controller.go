package controllers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"boardapp/app"
	"boardapp/middleware"
	"boardapp/models"
	"boardapp/services"
)

type AdController struct {
	app *app.App
}

func NewAdController(a *app.App) *AdController {
	return &AdController{app: a}
}

type writeAdRequest struct {
	Title      string     `json:"title" binding:"required"`
	Content    string     `json:"content"`
	IsVisible  *bool      `json:"is_visible"`
	StartDate  *time.Time `json:"start_date"`
	EndDate    *time.Time `json:"end_date"`
	ViewCount  int        `json:"view_count"`
	ClickCount int        `json:"click_count"`
}

func (adc *AdController) adID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("ad_id"), 10, 64)
	if err != nil {
		respondError(c, models.ErrValidation, "invalid ad id")
		return 0, false
	}
	return uint(id), true
}

// Create registers an advertisement and caches it immediately. Admin only.
func (adc *AdController) Create(c *gin.Context) {
	user := middleware.CurrentUser(c)
	if user.Role != models.RoleAdmin {
		respondError(c, models.ErrForbidden, "admin only")
		return
	}

	var req writeAdRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidation, "invalid request body")
		return
	}

	visible := true
	if req.IsVisible != nil {
		visible = *req.IsVisible
	}
	ad := models.Advertisement{
		Title:      req.Title,
		Content:    req.Content,
		IsVisible:  visible,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		ViewCount:  req.ViewCount,
		ClickCount: req.ClickCount,
	}

	ctx := c.Request.Context()
	if err := adc.app.DB.WithContext(ctx).Create(&ad).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}

	adc.cacheAd(c, &ad)

	c.JSON(http.StatusCreated, ad)
}

func (adc *AdController) cacheAd(c *gin.Context, ad *models.Advertisement) {
	payload, err := json.Marshal(ad)
	if err != nil {
		adc.app.Log.Warn().Err(err).Uint("ad_id", ad.ID).Msg("ad serialization failed")
		return
	}
	if err := adc.app.Cache.Set(c.Request.Context(), ad.ID, payload, adc.app.Config.AdCacheTTL); err != nil {
		adc.app.Log.Warn().Err(err).Uint("ad_id", ad.ID).Msg("ad cache population failed")
	}
}

func (adc *AdController) List(c *gin.Context) {
	var ads []models.Advertisement
	err := adc.app.DB.WithContext(c.Request.Context()).
		Where("is_deleted = ?", false).
		Find(&ads).Error
	if err != nil {
		respondError(c, err, "internal error")
		return
	}
	c.JSON(http.StatusOK, ads)
}

// Get serves one advertisement cache-aside and records a view event. A
// cache hit skips the relational store entirely, soft-delete filter
// included; the entry's TTL bounds that staleness.
func (adc *AdController) Get(c *gin.Context) {
	adID, ok := adc.adID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var ad models.Advertisement

	payload, err := adc.app.Cache.Get(ctx, adID)
	switch {
	case err == nil:
		if err := json.Unmarshal(payload, &ad); err != nil {
			respondError(c, err, "internal error")
			return
		}
	case errors.Is(err, models.ErrNotFound):
		dbErr := adc.app.DB.WithContext(ctx).
			Where("id = ? AND is_deleted = ?", adID, false).
			First(&ad).Error
		if errors.Is(dbErr, gorm.ErrRecordNotFound) {
			respondError(c, models.ErrNotFound, "advertisement not found")
			return
		}
		if dbErr != nil {
			respondError(c, dbErr, "internal error")
			return
		}
		adc.cacheAd(c, &ad)
	default:
		respondError(c, err, "internal error")
		return
	}

	trueView := c.Query("is_true_view") == "true"
	adc.recordHistory(c, services.ViewHistoryCollection, adID, &trueView)

	c.JSON(http.StatusOK, ad)
}

// Click records a click event against a live advertisement.
func (adc *AdController) Click(c *gin.Context) {
	adID, ok := adc.adID(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	var ad models.Advertisement
	err := adc.app.DB.WithContext(ctx).
		Where("id = ? AND is_deleted = ?", adID, false).
		First(&ad).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, models.ErrNotFound, "advertisement not found")
		return
	}
	if err != nil {
		respondError(c, err, "internal error")
		return
	}

	adc.recordHistory(c, services.ClickHistoryCollection, adID, nil)

	c.JSON(http.StatusOK, "click")
}

// recordHistory appends one view/click event. Best effort: the serving of
// the ad never fails because the event log is down. isTrueView is non-nil
// for view events only.
func (adc *AdController) recordHistory(c *gin.Context, collection string, adID uint, isTrueView *bool) {
	var username *string
	if user := middleware.CurrentUser(c); user != nil {
		username = &user.Username
	}

	rec := services.HistoryRecord{
		AdID:        adID,
		Username:    username,
		ClientIP:    c.ClientIP(),
		IsTrueView:  isTrueView,
		CreatedDate: time.Now().UTC(),
	}
	if err := adc.app.Docs.InsertHistory(c.Request.Context(), collection, rec); err != nil {
		adc.app.Log.Warn().Err(err).Uint("ad_id", adID).Str("collection", collection).Msg("history insert failed")
	}
}

// ViewHistory aggregates yesterday's unique viewers per ad.
func (adc *AdController) ViewHistory(c *gin.Context) {
	adc.history(c, services.ViewHistoryCollection)
}

// ClickHistory aggregates yesterday's unique clickers per ad.
func (adc *AdController) ClickHistory(c *gin.Context) {
	adc.history(c, services.ClickHistoryCollection)
}

func (adc *AdController) history(c *gin.Context, collection string) {
	start, end := services.YesterdayRange(time.Now())
	results, err := adc.app.Docs.UniqueVisitors(c.Request.Context(), collection, start, end)
	if err != nil {
		respondError(c, err, "internal error")
		return
	}
	if results == nil {
		results = []services.VisitorCount{}
	}
	c.JSON(http.StatusOK, results)
}
