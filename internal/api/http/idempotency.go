package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/leave-service/internal/auth"
	apperrors "github.com/spec-kit/leave-service/pkg/util/errorutil"
)

const (
	// IdempotencyKeyHeader names the client-chosen key.
	IdempotencyKeyHeader = "Idempotency-Key"
	// IdempotentReplayHeader is set on replayed responses.
	IdempotentReplayHeader = "Idempotent-Replayed"

	idempotencyLockTTL = 30 * time.Second
)

type cachedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type"`
	Body        string `json:"body"`
}

// Idempotency replays the stored response of a POST that was already
// completed with the same Idempotency-Key by the same caller on the same
// concrete path. A nil client
// disables it.
func Idempotency(client redis.Cmdable, ttl time.Duration, logger *zap.Logger) fiber.Handler {
	log := logger.Named("http.idempotency")
	return func(c *fiber.Ctx) error {
		key := c.Get(IdempotencyKeyHeader)
		if client == nil || key == "" || c.Method() != fiber.MethodPost {
			return c.Next()
		}

		caller := "anonymous"
		if principal, ok := auth.PrincipalFromContext(c); ok {
			caller = principal.EmployeeID
		}
		cacheKey := fmt.Sprintf("idemp:%s:%s:%s", c.Path(), caller, key)
		lockKey := cacheKey + ":lock"
		ctx := c.UserContext()

		raw, err := client.Get(ctx, cacheKey).Result()
		switch {
		case err == nil:
			var cached cachedResponse
			if err := json.Unmarshal([]byte(raw), &cached); err == nil {
				c.Set(IdempotentReplayHeader, strconv.FormatBool(true))
				c.Set(fiber.HeaderContentType, cached.ContentType)
				return c.Status(cached.Status).SendString(cached.Body)
			}
		case !errors.Is(err, redis.Nil):
			log.Warn("idempotency lookup failed; passing through", zap.Error(err))
			return c.Next()
		}

		acquired, err := client.SetNX(ctx, lockKey, "locked", idempotencyLockTTL).Result()
		if err != nil {
			log.Warn("idempotency lock failed; passing through", zap.Error(err))
			return c.Next()
		}
		if !acquired {
			return apperrors.NewDomainError(apperrors.CodeRequestInProgress, "a request with this idempotency key is in progress", fiber.StatusConflict, nil)
		}
		defer func() {
			if err := client.Del(ctx, lockKey).Err(); err != nil {
				log.Warn("idempotency unlock failed", zap.Error(err))
			}
		}()

		if err := c.Next(); err != nil {
			return err
		}

		status := c.Response().StatusCode()
		if status >= fiber.StatusBadRequest {
			return nil
		}
		payload, err := json.Marshal(cachedResponse{
			Status:      status,
			ContentType: string(c.Response().Header.ContentType()),
			Body:        string(c.Response().Body()),
		})
		if err == nil {
			if err := client.Set(ctx, cacheKey, payload, ttl).Err(); err != nil {
				log.Warn("idempotency store failed", zap.Error(err))
			}
		}
		return nil
	}
}
