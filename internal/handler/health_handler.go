package handler

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const readinessTimeout = 2 * time.Second

// ReadinessCheck is an additional dependency probed by /readyz.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

func RegisterHealthRoutes(app fiber.Router, sqlDB *sql.DB, rdb *redis.Client, extra ...ReadinessCheck) {
	app.Get("/livez", LivezHandler())
	app.Get("/readyz", ReadyzHandler(sqlDB, rdb, extra...))
}

func LivezHandler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "ok",
		})
	}
}

func ReadyzHandler(sqlDB *sql.DB, rdb *redis.Client, extra ...ReadinessCheck) fiber.Handler {
	checks := make([]ReadinessCheck, 0, 2+len(extra))
	checks = append(checks,
		ReadinessCheck{Name: "postgres", Check: sqlDB.PingContext},
		ReadinessCheck{Name: "redis", Check: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)
	checks = append(checks, extra...)

	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
		defer cancel()

		var mu sync.Mutex
		results := make(fiber.Map, len(checks))
		ready := true

		// Probes never fail the group so every dependency is reported.
		var g errgroup.Group
		for _, check := range checks {
			g.Go(func() error {
				status := "ok"
				if err := check.Check(ctx); err != nil {
					status = "down"
				}

				mu.Lock()
				defer mu.Unlock()
				results[check.Name] = status
				if status != "ok" {
					ready = false
				}
				return nil
			})
		}
		_ = g.Wait()

		status := "ready"
		statusCode := fiber.StatusOK
		if !ready {
			status = "not_ready"
			statusCode = fiber.StatusServiceUnavailable
		}

		return c.Status(statusCode).JSON(fiber.Map{
			"status": status,
			"checks": results,
		})
	}
}
