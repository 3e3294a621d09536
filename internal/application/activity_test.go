package application

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActivityService_ListActivities(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	for i := 0; i < 25; i++ {
		require.NoError(t, store.CreateActivity(context.Background(), Activity{
			ID:        fmt.Sprintf("act-%02d", i),
			UserID:    "user-owner",
			Type:      ActivityViewEvent,
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
		}))
	}
	require.NoError(t, store.CreateActivity(context.Background(), Activity{ID: "act-other", UserID: "someone-else", Type: ActivityViewEvent}))

	svc := NewActivityService(store)

	activities, err := svc.ListActivities(context.Background(), ListActivitiesParams{Principal: ownerPrincipal()})
	require.NoError(t, err)
	require.Len(t, activities, 20)
	assert.Equal(t, "act-24", activities[0].ID)

	activities, err = svc.ListActivities(context.Background(), ListActivitiesParams{Principal: ownerPrincipal(), Limit: 3})
	require.NoError(t, err)
	assert.Len(t, activities, 3)
}

func TestActivityService_ListActivities_Validation(t *testing.T) {
	t.Parallel()

	svc := NewActivityService(newFakeStore())

	for _, limit := range []int{-1, 101} {
		_, err := svc.ListActivities(context.Background(), ListActivitiesParams{Principal: ownerPrincipal(), Limit: limit})
		var vErr *ValidationError
		assert.ErrorAs(t, err, &vErr, "limit %d", limit)
	}

	_, err := svc.ListActivities(context.Background(), ListActivitiesParams{})
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		" Alice@Example.com ":   "alice@example.com",
		"":                      "",
		"not-an-email":          "",
		"Alice <a@example.com>": "",
	}
	for input, want := range tests {
		assert.Equal(t, want, normalizeEmail(input), input)
	}
}
