package service

import (
	"context"
	"testing"

	"milkrun/internal/model"
	"milkrun/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditLogsAreScopedToTheCallersStore(t *testing.T) {
	audit := &fakeAudit{}
	ctx := context.Background()
	storeA, storeB := uuid.New(), uuid.New()

	require.NoError(t, writeAudit(ctx, audit, Actor{}, &storeA, model.ActionSubmitAttendance, "log-a", "2025-11-01", nil))
	require.NoError(t, writeAudit(ctx, audit, Actor{}, &storeB, model.ActionGenerateInvoice, "inv-b", "INV-1", nil))
	require.NoError(t, writeAudit(ctx, audit, Actor{}, nil, model.ActionCreateUser, "user", "root", nil))

	svc := NewAuditService(audit)

	logs, total, err := svc.GetAuditLogs(ctx, Actor{Role: model.RoleManager, StoreID: storeA.String()}, repository.AuditFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, logs, 1)
	assert.Equal(t, "log-a", logs[0].EntityID)
	assert.Equal(t, storeA.String(), logs[0].StoreID)
	assert.Equal(t, "System", logs[0].Username)

	_, total, err = svc.GetAuditLogs(ctx, Actor{Role: model.RoleAdmin}, repository.AuditFilter{}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	// A store-bound caller cannot widen the filter to another store.
	_, total, err = svc.GetAuditLogs(ctx, Actor{StoreID: storeA.String()}, repository.AuditFilter{StoreID: storeB.String()}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)

	logs, _, err = svc.GetAuditLogs(ctx, Actor{}, repository.AuditFilter{Action: model.ActionGenerateInvoice}, 1, 20)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "inv-b", logs[0].EntityID)
}
