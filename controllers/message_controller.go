package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"boardapp/app"
	"boardapp/models"
	"boardapp/services"
)

type MessageController struct {
	app *app.App
}

func NewMessageController(a *app.App) *MessageController {
	return &MessageController{app: a}
}

type messageEnvelope struct {
	RoutingKey string `json:"routing_key" binding:"required"`
	Body       string `json:"body" binding:"required"`
}

// Process handles one relayed queue message. Unknown kinds are accepted
// and ignored; only a failed fan-out is a server error (so the consumer
// requeues the delivery).
func (mc *MessageController) Process(c *gin.Context) {
	var envelope messageEnvelope
	if err := c.ShouldBindJSON(&envelope); err != nil {
		respondError(c, models.ErrValidation, "routing_key and body are required")
		return
	}

	ctx := c.Request.Context()
	msg := services.DecodeMessage([]byte(envelope.Body))

	switch m := msg.(type) {
	case services.WriteArticleMessage:
		if err := mc.app.Notifier.ArticleWritten(ctx, m.ArticleID, m.UserID); err != nil {
			mc.app.Log.Error().Err(err).Uint("article_id", m.ArticleID).Msg("article fan-out failed")
			respondError(c, err, "internal error")
			return
		}
	case services.WriteCommentMessage:
		if err := mc.app.Notifier.CommentWritten(ctx, m.CommentID); err != nil {
			mc.app.Log.Error().Err(err).Uint("comment_id", m.CommentID).Msg("comment fan-out failed")
			respondError(c, err, "internal error")
			return
		}
	case services.UnknownMessage:
		mc.app.Log.Info().Str("routing_key", envelope.RoutingKey).Str("type", m.Type).Msg("ignoring unknown message kind")
	}

	c.JSON(http.StatusOK, "ok")
}
