package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Routing keys for write events published to the topic exchange.
const (
	RoutingKeyArticle = "board.article"
	RoutingKeyComment = "board.comment"
)

// Message is the tagged union of relayed queue messages. Decoding never
// fails: anything that is not a known kind becomes UnknownMessage, which
// receivers accept and ignore.
type Message interface {
	messageKind() string
}

type WriteArticleMessage struct {
	ArticleID uint `json:"article_id"`
	UserID    uint `json:"user_id"`
}

type WriteCommentMessage struct {
	CommentID uint `json:"comment_id"`
}

type UnknownMessage struct {
	Type string
}

func (WriteArticleMessage) messageKind() string { return "write_article" }
func (WriteCommentMessage) messageKind() string { return "write_comment" }
func (m UnknownMessage) messageKind() string    { return m.Type }

// DecodeMessage parses a relayed message body into its variant.
func DecodeMessage(body []byte) Message {
	var probe struct {
		Type      string `json:"type"`
		ArticleID uint   `json:"article_id"`
		UserID    uint   `json:"user_id"`
		CommentID uint   `json:"comment_id"`
	}
	if err := json.Unmarshal(body, &probe); err != nil {
		return UnknownMessage{}
	}
	switch probe.Type {
	case "write_article":
		return WriteArticleMessage{ArticleID: probe.ArticleID, UserID: probe.UserID}
	case "write_comment":
		return WriteCommentMessage{CommentID: probe.CommentID}
	default:
		return UnknownMessage{Type: probe.Type}
	}
}

// EncodeMessage serializes a variant for publishing, adding the type tag.
func EncodeMessage(msg Message) ([]byte, error) {
	switch m := msg.(type) {
	case WriteArticleMessage:
		return json.Marshal(map[string]any{
			"type":       m.messageKind(),
			"article_id": m.ArticleID,
			"user_id":    m.UserID,
		})
	case WriteCommentMessage:
		return json.Marshal(map[string]any{
			"type":       m.messageKind(),
			"comment_id": m.CommentID,
		})
	default:
		return nil, fmt.Errorf("cannot encode message kind %q", msg.messageKind())
	}
}

// Publisher pushes write events to the message relay. Publishing is a
// side effect of an already committed write; callers log failures and
// carry on.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, msg Message) error
}

// AMQPPublisher publishes to a durable topic exchange.
type AMQPPublisher struct {
	ch       *amqp.Channel
	exchange string
}

func NewAMQPPublisher(ch *amqp.Channel, exchange string) *AMQPPublisher {
	return &AMQPPublisher{ch: ch, exchange: exchange}
}

func (p *AMQPPublisher) Publish(ctx context.Context, routingKey string, msg Message) error {
	body, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	err = p.ch.PublishWithContext(ctx, p.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

// MemoryPublisher records published messages. Used in tests.
type MemoryPublisher struct {
	mu        sync.Mutex
	published []PublishedMessage
}

type PublishedMessage struct {
	RoutingKey string
	Message    Message
}

func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

func (p *MemoryPublisher) Publish(_ context.Context, routingKey string, msg Message) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.published = append(p.published, PublishedMessage{RoutingKey: routingKey, Message: msg})
	return nil
}

func (p *MemoryPublisher) Published() []PublishedMessage {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]PublishedMessage(nil), p.published...)
}
