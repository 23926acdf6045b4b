package handlers

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
)

const readinessTimeout = 2 * time.Second

// ErrDependencyDisabled is returned by a probe whose dependency is switched
// off in configuration. It does not fail readiness.
var ErrDependencyDisabled = errors.New("disabled")

// ReadinessCheck probes one dependency.
type ReadinessCheck func(ctx context.Context) error

// HealthHandler serves /health/live and /health/ready.
type HealthHandler struct {
	serviceName string
	version     string
	checks      map[string]ReadinessCheck
}

func NewHealthHandler(serviceName, version string, checks map[string]ReadinessCheck) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version, checks: checks}
}

func (h *HealthHandler) Live(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "alive",
		"service": h.serviceName,
		"version": h.version,
	})
}

// Ready runs every probe in parallel under one deadline.
func (h *HealthHandler) Ready(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), readinessTimeout)
	defer cancel()

	var (
		mu      sync.Mutex
		deps    = make(fiber.Map, len(h.checks))
		healthy = true
	)
	var g errgroup.Group
	for name, check := range h.checks {
		name, check := name, check
		g.Go(func() error {
			err := check(ctx)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				deps[name] = "ok"
			case errors.Is(err, ErrDependencyDisabled):
				deps[name] = "disabled"
			default:
				deps[name] = err.Error()
				healthy = false
			}
			return nil
		})
	}
	_ = g.Wait()

	if !healthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": fiber.Map{
				"code":    "DEPENDENCY_UNAVAILABLE",
				"message": "one or more dependencies unavailable",
				"details": deps,
			},
		})
	}
	return c.JSON(fiber.Map{"status": "ready", "dependencies": deps})
}
