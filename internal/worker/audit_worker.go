package worker

import (
	"github.com/spec-kit/guild-ticket-bot/internal/service"
)

// StartAuditWorker registers the lifecycle event handlers.
func StartAuditWorker(auditService *service.AuditService) {
	if auditService == nil {
		return
	}
	auditService.RegisterHandlers()
}
