package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcabrera/citewatch/internal/models"
)

func TestFiltersCompact(t *testing.T) {
	filters := Filters{
		"status":     "paid",
		"type":       "",
		"enforcerId": nil,
		"fineAmount": 0,
	}

	compact := filters.Compact()

	assert.Equal(t, Filters{"status": "paid", "fineAmount": 0}, compact,
		"nil and empty-string values drop; numeric zero is a real value")
}

func TestMemViolations_CreateAssignsIdentity(t *testing.T) {
	mem := NewMemStore()
	fixed := time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC)
	mem.SetClock(func() time.Time { return fixed })

	created, err := mem.Violations().Create(context.Background(), &models.Violation{
		Name: "Juan Dela Cruz", Type: "speeding", FineAmount: 500,
		Status: models.StatusPending,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.True(t, created.CreatedAt.Equal(fixed))
	assert.True(t, created.UpdatedAt.Equal(fixed))
}

func TestMemViolations_FindByID(t *testing.T) {
	mem := NewMemStore()
	ctx := context.Background()

	created, err := mem.Violations().Create(ctx, &models.Violation{
		Name: "Juan Dela Cruz", Type: "speeding", FineAmount: 500,
		Status: models.StatusPending,
	})
	require.NoError(t, err)

	t.Run("found", func(t *testing.T) {
		got, err := mem.Violations().FindByID(ctx, created.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "Juan Dela Cruz", got.Name)
	})

	t.Run("missing returns nil, nil", func(t *testing.T) {
		got, err := mem.Violations().FindByID(ctx, "nope")
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestMemViolations_EqualityQueries(t *testing.T) {
	mem := NewMemStore()
	ctx := context.Background()

	for _, v := range []models.Violation{
		{Name: "Juan Dela Cruz", Plate: "ABC-1234", Type: "speeding", Status: models.StatusPaid, FineAmount: 500},
		{Name: "Maria Santos", Plate: "XYZ-9999", Type: "speeding", Status: models.StatusPending, FineAmount: 300},
		{Name: "Pedro Cruz", Plate: "ABC-1234", Type: "illegal parking", Status: models.StatusPending, FineAmount: 200},
	} {
		v := v
		_, err := mem.Violations().Create(ctx, &v)
		require.NoError(t, err)
	}

	t.Run("single filter", func(t *testing.T) {
		got, err := mem.Violations().FindMany(ctx, Filters{"plate": "ABC-1234"}, 0)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("conjunction", func(t *testing.T) {
		got, err := mem.Violations().FindMany(ctx, Filters{"plate": "ABC-1234", "type": "speeding"}, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "Juan Dela Cruz", got[0].Name)
	})

	t.Run("status constant matches stored string", func(t *testing.T) {
		got, err := mem.Violations().FindMany(ctx, Filters{"status": models.StatusPending}, 0)
		require.NoError(t, err)
		assert.Len(t, got, 2)
	})

	t.Run("limit", func(t *testing.T) {
		got, err := mem.Violations().FindMany(ctx, Filters{"plate": "ABC-1234"}, 1)
		require.NoError(t, err)
		assert.Len(t, got, 1)
	})

	t.Run("no filters returns everything", func(t *testing.T) {
		got, err := mem.Violations().FindMany(ctx, nil, 0)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("count", func(t *testing.T) {
		n, err := mem.Violations().Count(ctx, Filters{"type": "speeding"})
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})

	t.Run("findOne", func(t *testing.T) {
		got, err := mem.Violations().FindOne(ctx, "name", "Maria Santos")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "XYZ-9999", got.Plate)

		missing, err := mem.Violations().FindOne(ctx, "name", "Nobody")
		require.NoError(t, err)
		assert.Nil(t, missing)
	})
}

func TestMemViolations_Update(t *testing.T) {
	mem := NewMemStore()
	ctx := context.Background()

	created, err := mem.Violations().Create(ctx, &models.Violation{
		Name: "Juan Dela Cruz", Type: "speeding", FineAmount: 500,
		Status: models.StatusPending,
	})
	require.NoError(t, err)

	t.Run("merges patch and keeps other fields", func(t *testing.T) {
		paidAt := time.Date(2025, 3, 16, 10, 0, 0, 0, time.UTC)
		updated, err := mem.Violations().Update(ctx, created.ID, Filters{
			"status": models.StatusPaid,
			"paidAt": paidAt,
		})
		require.NoError(t, err)
		require.NotNil(t, updated)
		assert.Equal(t, models.StatusPaid, updated.Status)
		require.NotNil(t, updated.PaidAt)
		assert.True(t, updated.PaidAt.Equal(paidAt))
		assert.Equal(t, "Juan Dela Cruz", updated.Name)
		assert.Equal(t, 500.0, updated.FineAmount)
	})

	t.Run("refreshes update timestamp", func(t *testing.T) {
		got, err := mem.Violations().FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.After(got.CreatedAt) || got.UpdatedAt.Equal(got.CreatedAt))
	})

	t.Run("missing returns nil, nil", func(t *testing.T) {
		updated, err := mem.Violations().Update(ctx, "nope", Filters{"status": models.StatusPaid})
		require.NoError(t, err)
		assert.Nil(t, updated)
	})
}

func TestMemViolations_Delete(t *testing.T) {
	mem := NewMemStore()
	ctx := context.Background()

	created, err := mem.Violations().Create(ctx, &models.Violation{
		Name: "Juan Dela Cruz", Type: "speeding", Status: models.StatusPending,
	})
	require.NoError(t, err)

	ok, err := mem.Violations().Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = mem.Violations().Delete(ctx, created.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := mem.Violations().FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemUsers(t *testing.T) {
	mem := NewMemStore()
	ctx := context.Background()

	reyes := mem.SeedUser(models.User{
		FullName: "Officer Reyes", BadgeNumber: "B-104",
		Role: models.RoleEnforcer, IsActive: true,
	})
	mem.SeedUser(models.User{
		FullName: "Admin Tan", Role: models.RoleAdmin, IsActive: true,
	})

	t.Run("findByID", func(t *testing.T) {
		got, err := mem.Users().FindByID(ctx, reyes.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "Officer Reyes", got.FullName)
	})

	t.Run("filter by role", func(t *testing.T) {
		got, err := mem.Users().FindMany(ctx, Filters{"role": models.RoleEnforcer}, 0)
		require.NoError(t, err)
		require.Len(t, got, 1)
		assert.Equal(t, "B-104", got[0].BadgeNumber)
	})

	t.Run("count", func(t *testing.T) {
		n, err := mem.Users().Count(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, 2, n)
	})
}

func TestMemStore_ReadsAreSnapshots(t *testing.T) {
	// Mutating a returned record must not leak back into the store.
	mem := NewMemStore()
	ctx := context.Background()

	created, err := mem.Violations().Create(ctx, &models.Violation{
		Name: "Juan Dela Cruz", Type: "speeding", Status: models.StatusPending,
	})
	require.NoError(t, err)

	got, err := mem.Violations().FindByID(ctx, created.ID)
	require.NoError(t, err)
	got.Name = "Someone Else"

	again, err := mem.Violations().FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Juan Dela Cruz", again.Name)
}
