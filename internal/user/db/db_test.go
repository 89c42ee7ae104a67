package db

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"busticket/internal/database/dbtest"
	"busticket/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newUser(email string) *models.User {
	now := time.Now().UTC()
	return &models.User{
		UID:       "uid-" + email,
		Name:      "Nguyễn Văn A",
		Email:     email,
		Role:      models.RolePassenger,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestCreateAndLookupUser(t *testing.T) {
	ctx := context.Background()
	d := &DB{Bun: dbtest.New(t)}

	u := newUser("a@example.com")
	require.NoError(t, d.CreateUser(ctx, u))
	assert.NotZero(t, u.ID)

	byID, err := d.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", byID.Email)

	byEmail, err := d.GetUserByEmail(ctx, "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	byUID, err := d.GetUserByUID(ctx, "uid-a@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byUID.ID)

	exists, err := d.EmailExists(ctx, "a@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, err = d.GetUserByID(ctx, 999)
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestUpdateAndDeleteUser(t *testing.T) {
	ctx := context.Background()
	d := &DB{Bun: dbtest.New(t)}

	u := newUser("b@example.com")
	require.NoError(t, d.CreateUser(ctx, u))

	u.Name = "Trần Thị B"
	u.Phone = "0901234567"
	require.NoError(t, d.UpdateUser(ctx, u, "name"))

	got, err := d.GetUserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Trần Thị B", got.Name)
	assert.Empty(t, got.Phone, "only listed columns are written")

	hasTickets, err := d.HasTickets(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, hasTickets)

	require.NoError(t, d.DeleteUser(ctx, u.ID))
	users, err := d.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}
