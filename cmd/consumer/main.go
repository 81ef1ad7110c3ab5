// The consumer relays queue messages to the API's /internal/messages
// endpoint. Deliveries answered with 2xx or 4xx are acknowledged (a bad
// message will not get better); 5xx and transport errors are requeued.
package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"boardapp/config"
	"boardapp/pkg/logger"
)

const prefetchCount = 10

type relayPayload struct {
	RoutingKey string `json:"routing_key"`
	Body       string `json:"body"`
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		boot := logger.New("boardapp-consumer", "info")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New("boardapp-consumer", cfg.App.LogLevel)

	conn, err := amqp.Dial(cfg.RabbitMQ.Url)
	if err != nil {
		log.Fatal().Err(err).Msg("connect rabbitmq")
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		log.Fatal().Err(err).Msg("open channel")
	}
	defer ch.Close()

	if err := ch.Qos(prefetchCount, 0, false); err != nil {
		log.Fatal().Err(err).Msg("set qos")
	}
	if err := ch.ExchangeDeclare(cfg.RabbitMQ.Exchange, "topic", true, false, false, false, nil); err != nil {
		log.Fatal().Err(err).Msg("declare exchange")
	}
	if _, err := ch.QueueDeclare(cfg.Consumer.Queue, true, false, false, false, nil); err != nil {
		log.Fatal().Err(err).Msg("declare queue")
	}
	if err := ch.QueueBind(cfg.Consumer.Queue, cfg.Consumer.RoutingKey, cfg.RabbitMQ.Exchange, false, nil); err != nil {
		log.Fatal().Err(err).Msg("bind queue")
	}

	deliveries, err := ch.Consume(cfg.Consumer.Queue, "", false, false, false, false, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("start consuming")
	}

	log.Info().
		Str("exchange", cfg.RabbitMQ.Exchange).
		Str("queue", cfg.Consumer.Queue).
		Str("routing_key", cfg.Consumer.RoutingKey).
		Msg("consumer started")

	client := &http.Client{Timeout: 30 * time.Second}
	endpoint := cfg.Consumer.ApiUrl + "/internal/messages"

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-quit:
			log.Info().Msg("consumer stopping")
			return
		case d, ok := <-deliveries:
			if !ok {
				log.Error().Msg("delivery channel closed")
				return
			}
			relay(log, client, endpoint, d)
		}
	}
}

func relay(log zerolog.Logger, client *http.Client, endpoint string, d amqp.Delivery) {
	payload, err := json.Marshal(relayPayload{
		RoutingKey: d.RoutingKey,
		Body:       string(d.Body),
	})
	if err != nil {
		log.Error().Err(err).Msg("encode relay payload")
		d.Ack(false)
		return
	}

	resp, err := client.Post(endpoint, "application/json", bytes.NewReader(payload))
	if err != nil {
		log.Error().Err(err).Str("routing_key", d.RoutingKey).Msg("relay failed, requeueing")
		d.Nack(false, true)
		return
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		log.Error().Int("status", resp.StatusCode).Str("routing_key", d.RoutingKey).Msg("server error, requeueing")
		d.Nack(false, true)
	case resp.StatusCode >= 400:
		log.Error().Int("status", resp.StatusCode).Str("routing_key", d.RoutingKey).Msg("message rejected")
		d.Ack(false)
	default:
		log.Info().Str("routing_key", d.RoutingKey).Msg("message relayed")
		d.Ack(false)
	}
}
