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
)

type BoardController struct {
	app *app.App
}

func NewBoardController(a *app.App) *BoardController {
	return &BoardController{app: a}
}

type writeBoardRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description" binding:"required"`
}

// Create registers a board. Admin only.
func (bc *BoardController) Create(c *gin.Context) {
	if middleware.CurrentUser(c).Role != models.RoleAdmin {
		respondError(c, models.ErrForbidden, "admin only")
		return
	}

	var req writeBoardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, models.ErrValidation, "invalid request body")
		return
	}

	board := models.Board{Title: req.Title, Description: req.Description}
	if err := bc.app.DB.WithContext(c.Request.Context()).Create(&board).Error; err != nil {
		respondError(c, err, "internal error")
		return
	}
	c.JSON(http.StatusCreated, board)
}

func (bc *BoardController) List(c *gin.Context) {
	var boards []models.Board
	err := bc.app.DB.WithContext(c.Request.Context()).
		Where("is_deleted = ?", false).
		Find(&boards).Error
	if err != nil {
		respondError(c, err, "internal error")
		return
	}
	c.JSON(http.StatusOK, boards)
}

func (bc *BoardController) Get(c *gin.Context) {
	boardID, err := strconv.ParseUint(c.Param("board_id"), 10, 64)
	if err != nil {
		respondError(c, models.ErrValidation, "invalid board id")
		return
	}

	var board models.Board
	err = bc.app.DB.WithContext(c.Request.Context()).
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
	c.JSON(http.StatusOK, board)
}
