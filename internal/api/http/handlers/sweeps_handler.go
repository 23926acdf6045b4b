package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/guild-ticket-bot/internal/api/dto"
	"github.com/spec-kit/guild-ticket-bot/internal/service"
)

// SweepRunner triggers a named sweep.
type SweepRunner interface {
	RunOnce(ctx context.Context, name string) (service.SweepReport, error)
}

// SweepsHandler lets operators run a sweep on demand.
type SweepsHandler struct {
	runner SweepRunner
}

// NewSweepsHandler constructs handler.
func NewSweepsHandler(runner SweepRunner) *SweepsHandler {
	return &SweepsHandler{runner: runner}
}

// Run POST /admin/sweeps/:name.
func (h *SweepsHandler) Run(c *fiber.Ctx) error {
	report, err := h.runner.RunOnce(c.UserContext(), c.Params("name"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.SweepReportResponse{
		Name:       report.Name,
		Examined:   report.Examined,
		Acted:      report.Acted,
		Failed:     report.Failed,
		DurationMS: report.Duration.Milliseconds(),
	}})
}
