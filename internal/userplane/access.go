package userplane

import (
	"context"
	"time"

	"inboxguard/internal/domain"
	"inboxguard/internal/storage"
	"inboxguard/pkg/logger"
)

// AccessValidator implements validate_access: owner mismatch is always
// deny, resource type system_config additionally requires role admin, and
// every attempt (allowed or not) is written to the audit log.
type AccessValidator struct {
	system *storage.SystemStore
}

func NewAccessValidator(system *storage.SystemStore) *AccessValidator {
	return &AccessValidator{system: system}
}

// Validate checks caller's right to perform op on (resourceType, resourceID),
// where ownerID is the resource's actual owner ("" if the resource has no
// single owner, e.g. a system-wide listing). ip/agent are recorded into the
// audit entry only.
func (v *AccessValidator) Validate(ctx context.Context, caller domain.UserContext, resourceType domain.ResourceType, resourceID string, op domain.AccessOperation, ownerID, ip, agent string) bool {
	allowed, reason := v.decide(caller, resourceType, ownerID)

	entry := &domain.AuditEntry{
		UserID:       caller.UserID,
		Action:       string(op),
		ResourceType: string(resourceType),
		ResourceID:   resourceID,
		Success:      allowed,
		Reason:       reason,
		IP:           ip,
		Agent:        agent,
		Timestamp:    time.Now(),
	}
	if err := v.system.RecordAudit(ctx, entry); err != nil {
		logger.Warn("record audit for %s/%s by %s: %v", resourceType, resourceID, caller.UserID, err)
	}
	return allowed
}

func (v *AccessValidator) decide(caller domain.UserContext, resourceType domain.ResourceType, ownerID string) (bool, string) {
	if resourceType == domain.ResourceSystemConfig && !caller.IsAdmin() {
		return false, "system_config requires admin role"
	}
	if ownerID != "" && ownerID != caller.UserID {
		return false, "resource owned by a different user"
	}
	return true, "ok"
}
