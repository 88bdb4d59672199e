package config

import (
	"context"

	"github.com/cenkalti/backoff/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// WaitForRedis pings the rule store until it answers or retries run out.
func WaitForRedis(ctx context.Context, client *redis.Client) error {
	logger := zerolog.Ctx(ctx).With().Str("addr", client.Options().Addr).Logger()

	operation := func() (string, error) {
		pong, err := client.Ping(ctx).Result()
		if err != nil {
			logger.Warn().Err(err).Msg("redis not reachable, retrying")
			return "", err
		}
		return pong, nil
	}

	if _, err := backoff.Retry(ctx, operation, backoff.WithBackOff(newBackOff()), backoff.WithMaxTries(5)); err != nil {
		logger.Error().Err(err).Msg("giving up on redis")
		return err
	}

	logger.Info().Msg("connected to redis")
	return nil
}
