package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"milkrun/internal/apperr"
	"milkrun/internal/model"
	"milkrun/internal/repository"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor is the authenticated caller as read from the access token.
type Actor struct {
	UserID  string
	Role    string
	StoreID string // empty for platform admins
}

// auditUserID returns nil for callers without a user, e.g. the admin CLI.
func (a Actor) auditUserID() *uuid.UUID {
	if parsed, err := uuid.Parse(a.UserID); err == nil {
		return &parsed
	}
	return nil
}

// canAccess reports whether the actor may see data of a store.
func (a Actor) canAccess(storeID uuid.UUID) bool {
	return a.StoreID == "" || a.StoreID == storeID.String()
}

func parseID(field, raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, apperr.Validation(field, "is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperr.Validation(field, "must be a valid id")
	}
	return id, nil
}

// loadArea returns the area if it exists and belongs to the actor's store.
// Areas of other stores are reported as missing.
func loadArea(ctx context.Context, repo repository.AreaRepository, actor Actor, areaID uuid.UUID) (*model.Area, error) {
	area, err := repo.FindByID(ctx, areaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("area")
		}
		return nil, fmt.Errorf("database error: %w", err)
	}
	if !actor.canAccess(area.StoreID) {
		return nil, apperr.NotFound("area")
	}
	return area, nil
}

// writeAudit records a change to an entity of storeID. Pass nil for
// entities that belong to no store, such as platform admins.
func writeAudit(ctx context.Context, repo repository.AuditRepository, actor Actor, storeID *uuid.UUID, action, entityID, entityName string, details interface{}) error {
	raw, _ := json.Marshal(details)
	entry := &model.AuditLog{
		UserID:     actor.auditUserID(),
		StoreID:    storeID,
		Action:     action,
		EntityID:   entityID,
		EntityName: entityName,
		Details:    string(raw),
	}
	if err := repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}
