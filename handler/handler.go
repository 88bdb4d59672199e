package handler

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"nvr-orchestrator/dto"
	"nvr-orchestrator/service"
)

type ServiceDependencies struct {
	Router service.Dispatcher
}

// EventHandler dispatches a Frigate event message once the event has ended.
// "new" and "update" messages are ignored.
func EventHandler(ctx context.Context, msg amqp.Delivery, deps ServiceDependencies) error {
	var event dto.FrigateEventMessage
	if err := json.Unmarshal(msg.Body, &event); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("failed to unmarshal event message")
		return err
	}

	if event.Type != "end" || event.After == nil {
		zerolog.Ctx(ctx).Debug().Str("type", event.Type).Msg("ignoring event message")
		return nil
	}

	zerolog.Ctx(ctx).Info().
		Str("event_id", event.After.ID).
		Str("camera", event.After.Camera).
		Str("label", event.After.Label).
		Msg("received ended event")

	_, err := deps.Router.Dispatch(ctx, *event.After)
	return err
}
