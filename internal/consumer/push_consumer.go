package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/CyberwizD/notification-ingest/internal/models"
	"github.com/CyberwizD/notification-ingest/internal/services"
	"github.com/CyberwizD/notification-ingest/pkg/logger"
)

// HeaderAppState lets the native shell pin the app state a push was received in.
const HeaderAppState = "x-app-state"

// PushConsumer feeds raw remote messages from the push queue into the pipeline.
type PushConsumer struct {
	base     *BaseConsumer
	pipeline *services.Pipeline
	logger   *slog.Logger
}

func NewPushConsumer(base *BaseConsumer, pipeline *services.Pipeline, l *slog.Logger) *PushConsumer {
	return &PushConsumer{
		base:     base,
		pipeline: pipeline,
		logger:   l.With(logger.Component("push_consumer")),
	}
}

func (p *PushConsumer) Start(ctx context.Context) error {
	return p.base.Start(ctx, p.handleDelivery)
}

func (p *PushConsumer) handleDelivery(ctx context.Context, msg amqp.Delivery) error {
	var remote models.RemoteMessage
	if err := json.Unmarshal(msg.Body, &remote); err != nil {
		err = fmt.Errorf("decode remote message: %w", err)
		p.pipeline.Reporter().Report(ctx, "consumer.decode", services.ErrMalformedPayload, err)
		_ = msg.Reject(false)
		return err
	}
	if remote.MessageID == "" {
		remote.MessageID = msg.MessageId
	}

	if p.foreground(ctx, msg) {
		p.pipeline.Normalizer.HandleForeground(ctx, remote)
	} else {
		p.pipeline.Normalizer.HandleBackground(ctx, remote)
	}
	return msg.Ack(false)
}

func (p *PushConsumer) foreground(ctx context.Context, msg amqp.Delivery) bool {
	raw, ok := msg.Headers[HeaderAppState].(string)
	if !ok {
		return p.pipeline.Lifecycle.Foreground()
	}
	state, ok := models.ParseAppState(raw)
	if !ok {
		p.logger.DebugContext(ctx, "ignoring unknown app state header", slog.String("state", raw))
		return p.pipeline.Lifecycle.Foreground()
	}
	return state == models.AppStateActive
}
