package service

import (
	"context"
	"testing"

	"milkrun/internal/apperr"
	"milkrun/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func TestCreateUserAndLogin(t *testing.T) {
	users := &fakeUsers{}
	audit := &fakeAudit{}
	svc := NewUserService(users, audit, fakeTx{}, testSecret)
	storeID := uuid.New()

	created, err := svc.CreateUser(context.Background(), Actor{}, CreateUserRequest{
		Username: "ravi",
		Email:    "ravi@example.com",
		Phone:    "9876543210",
		Password: "secret123",
		Role:     model.RoleStaff,
		StoreID:  storeID.String(),
	})
	require.NoError(t, err)
	assert.Equal(t, storeID.String(), created.StoreID)
	assert.NotEqual(t, "secret123", users.users[0].Password)
	assert.Equal(t, []string{model.ActionCreateUser}, audit.actions())

	token, err := svc.Login(context.Background(), LoginUserRequest{Login: "ravi@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, model.RoleStaff, token.Role)

	claims := jwt.MapClaims{}
	_, err = jwt.ParseWithClaims(token.Token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(testSecret), nil
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID.String(), claims["sub"])
	assert.Equal(t, model.RoleStaff, claims["role"])
	assert.Equal(t, storeID.String(), claims["store"])
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc := NewUserService(&fakeUsers{}, &fakeAudit{}, fakeTx{}, testSecret)
	_, err := svc.CreateUser(context.Background(), Actor{}, CreateUserRequest{
		Username: "owner", Email: "owner@example.com", Password: "secret123", Role: model.RoleAdmin,
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), LoginUserRequest{Login: "owner", Password: "wrong-pass"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, err = svc.Login(context.Background(), LoginUserRequest{Login: "nobody", Password: "secret123"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestCreateUserRules(t *testing.T) {
	svc := NewUserService(&fakeUsers{}, &fakeAudit{}, fakeTx{}, testSecret)
	storeID := uuid.NewString()

	_, err := svc.CreateUser(context.Background(), Actor{}, CreateUserRequest{
		Username: "a", Email: "a@example.com", Password: "secret123", Role: model.RoleManager,
	})
	var verr *apperr.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "storeId", verr.Field)

	_, err = svc.CreateUser(context.Background(), Actor{StoreID: storeID}, CreateUserRequest{
		Username: "b", Email: "b@example.com", Password: "secret123", Role: model.RoleStaff, StoreID: uuid.NewString(),
	})
	require.ErrorAs(t, err, &verr)

	_, err = svc.CreateUser(context.Background(), Actor{StoreID: storeID}, CreateUserRequest{
		Username: "c", Email: "c@example.com", Password: "secret123", Role: model.RoleStaff, StoreID: storeID,
	})
	require.NoError(t, err)

	_, err = svc.CreateUser(context.Background(), Actor{}, CreateUserRequest{
		Username: "c", Email: "other@example.com", Password: "secret123", Role: model.RoleAdmin,
	})
	var conflict *apperr.ConflictError
	assert.ErrorAs(t, err, &conflict)
}

func TestUsersAreScopedToTheCallersStore(t *testing.T) {
	users := &fakeUsers{}
	svc := NewUserService(users, &fakeAudit{}, fakeTx{}, testSecret)
	ctx := context.Background()
	storeA, storeB := uuid.NewString(), uuid.NewString()

	admin, err := svc.CreateUser(ctx, Actor{}, CreateUserRequest{
		Username: "root", Email: "root@example.com", Password: "secret123", Role: model.RoleAdmin,
	})
	require.NoError(t, err)
	staffA, err := svc.CreateUser(ctx, Actor{}, CreateUserRequest{
		Username: "a", Email: "a@example.com", Password: "secret123", Role: model.RoleStaff, StoreID: storeA,
	})
	require.NoError(t, err)
	staffB, err := svc.CreateUser(ctx, Actor{}, CreateUserRequest{
		Username: "b", Email: "b@example.com", Password: "secret123", Role: model.RoleStaff, StoreID: storeB,
	})
	require.NoError(t, err)

	managerA := Actor{Role: model.RoleManager, StoreID: storeA}
	list, total, err := svc.ListUsers(ctx, managerA, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, staffA.ID, list[0].ID)

	_, total, err = svc.ListUsers(ctx, Actor{Role: model.RoleAdmin}, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	got, err := svc.GetUserByID(ctx, managerA, staffA.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "a", got.Username)

	var notFound *apperr.NotFoundError
	_, err = svc.GetUserByID(ctx, managerA, staffB.ID.String())
	assert.ErrorAs(t, err, &notFound)
	_, err = svc.GetUserByID(ctx, managerA, admin.ID.String())
	assert.ErrorAs(t, err, &notFound)
	_, err = svc.GetUserByID(ctx, Actor{}, "not-a-uuid")
	assert.ErrorAs(t, err, &notFound)
}
