package handler

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

const readinessTimeout = 2 * time.Second

// QueueHealth exposes the batch executor's queue occupancy.
type QueueHealth interface {
	QueueDepth() (depth, capacity int)
}

func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, queue QueueHealth) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb, queue))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client, queue QueueHealth) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.Context(), readinessTimeout)
		defer cancel()

		pgErr := sqlDB.PingContext(ctx)
		redisErr := rdb.Ping(ctx).Err()

		pgStatus := "ok"
		if pgErr != nil {
			pgStatus = "down"
		}
		redisStatus := "ok"
		if redisErr != nil {
			redisStatus = "down"
		}

		queueFull := false
		queueStatus := "ok"
		if queue != nil {
			depth, capacity := queue.QueueDepth()
			queueFull = capacity > 0 && depth >= capacity
			if queueFull {
				queueStatus = "full"
			} else {
				queueStatus = fmt.Sprintf("%d/%d", depth, capacity)
			}
		}

		status := "ready"
		statusCode := fiber.StatusOK
		if pgErr != nil || redisErr != nil || queueFull {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		checks := fiber.Map{
			"postgres": pgStatus,
			"redis":    redisStatus,
		}
		if queue != nil {
			checks["executorQueue"] = queueStatus
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
