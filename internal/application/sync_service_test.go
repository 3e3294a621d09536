package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	results []SyncResult
	errs    []error
}

func (r *recordingObserver) ObserveSync(result SyncResult, err error) {
	r.results = append(r.results, result)
	r.errs = append(r.errs, err)
}

func newSyncServiceForTest(store *fakeStore, provider CalendarProvider) *SyncService {
	var factory ProviderFactory
	if provider != nil {
		factory = factoryFor(provider)
	}
	return NewSyncService(store, store, factory, sequenceIDs("sync"), fixedNow)
}

func TestSyncService_SkipsMalformedAndCountsValid(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	provider := &mockProvider{}
	start := testNow.Add(48 * time.Hour)
	end := start.Add(time.Hour)
	provider.On("ListEvents", mock.Anything, testNow.Add(-30*24*time.Hour), testNow.Add(90*24*time.Hour)).Return([]RemoteEvent{
		{ProviderID: "g-1", Title: "Dentist", Location: "Main St", Start: &start, End: &end},
		{ProviderID: "g-2", Title: "   "},
	}, nil).Once()

	observer := &recordingObserver{}
	svc := newSyncServiceForTest(store, provider)
	svc.SetObserver(observer)

	result, err := svc.Sync(context.Background(), ownerPrincipal())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Fetched)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 1, result.Skipped)

	event, err := store.FindEventByProviderID(context.Background(), "g-1")
	require.NoError(t, err)
	assert.Equal(t, "user-owner", event.OwnerID)
	assert.Equal(t, "Dentist", event.Title)
	assert.Equal(t, start, event.Start)

	_, err = store.FindEventByProviderID(context.Background(), "g-2")
	assert.ErrorIs(t, err, ErrNotFound)

	activities := store.activitiesOfType(ActivityCalendarSync)
	require.Len(t, activities, 1)
	assert.Equal(t, "Synced 1 events from calendar provider", activities[0].Details)

	require.Len(t, observer.results, 1)
	assert.NoError(t, observer.errs[0])
	provider.AssertExpectations(t)
}

func TestSyncService_UpdatesExistingByProviderID(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	existing := seededEvent("evt-1", "user-owner")
	existing.ProviderEventID = strPtr("g-1")
	existing.Category = strPtr("health")
	store.seedEvent(existing)

	newStart := testNow.Add(72 * time.Hour)
	provider := &mockProvider{}
	provider.On("ListEvents", mock.Anything, mock.Anything, mock.Anything).Return([]RemoteEvent{
		{ProviderID: "g-1", Title: "Dentist (moved)", Description: "bring card", Start: &newStart},
	}, nil)

	result, err := newSyncServiceForTest(store, provider).Sync(context.Background(), ownerPrincipal())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Updated)
	assert.Zero(t, result.Created)

	event, err := store.GetEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	assert.Equal(t, "Dentist (moved)", event.Title)
	require.NotNil(t, event.Description)
	assert.Equal(t, "bring card", *event.Description)
	assert.Equal(t, newStart, event.Start)
	assert.False(t, event.End.Before(event.Start))
	require.NotNil(t, event.Category)
	assert.Equal(t, "health", *event.Category)
}

func TestSyncService_SkipsEventsLinkedToOtherOwners(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	foreign := seededEvent("evt-foreign", "someone-else")
	foreign.ProviderEventID = strPtr("g-1")
	store.seedEvent(foreign)

	provider := &mockProvider{}
	provider.On("ListEvents", mock.Anything, mock.Anything, mock.Anything).Return([]RemoteEvent{{ProviderID: "g-1", Title: "Mine now"}}, nil)

	result, err := newSyncServiceForTest(store, provider).Sync(context.Background(), ownerPrincipal())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Zero(t, result.Processed)

	event, _ := store.GetEvent(context.Background(), "evt-foreign")
	assert.Equal(t, "Planning", event.Title)
}

func TestSyncService_CreateDefaultsMissingTimes(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	provider := &mockProvider{}
	provider.On("ListEvents", mock.Anything, mock.Anything, mock.Anything).Return([]RemoteEvent{{ProviderID: "g-9", Title: "Untimed"}}, nil)

	_, err := newSyncServiceForTest(store, provider).Sync(context.Background(), ownerPrincipal())
	require.NoError(t, err)

	event, err := store.FindEventByProviderID(context.Background(), "g-9")
	require.NoError(t, err)
	assert.Equal(t, testNow, event.Start)
	assert.Equal(t, testNow, event.End)
}

func TestSyncService_StoreFailuresDoNotAbortBatch(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.createErr = errors.New("disk full")
	provider := &mockProvider{}
	provider.On("ListEvents", mock.Anything, mock.Anything, mock.Anything).Return([]RemoteEvent{
		{ProviderID: "g-1", Title: "One"},
		{ProviderID: "g-2", Title: "Two"},
	}, nil)

	result, err := newSyncServiceForTest(store, provider).Sync(context.Background(), ownerPrincipal())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Failed)
	assert.Zero(t, result.Processed)
	assert.Len(t, store.activitiesOfType(ActivityCalendarSync), 1)
}

func TestSyncService_RequiresCredential(t *testing.T) {
	t.Parallel()

	observer := &recordingObserver{}
	svc := newSyncServiceForTest(newFakeStore(), &mockProvider{})
	svc.SetObserver(observer)

	principal := ownerPrincipal()
	principal.ProviderToken = ""
	_, err := svc.Sync(context.Background(), principal)
	assert.ErrorIs(t, err, ErrProviderCredentialMissing)

	_, err = newSyncServiceForTest(newFakeStore(), nil).Sync(context.Background(), ownerPrincipal())
	assert.ErrorIs(t, err, ErrProviderCredentialMissing)

	require.Len(t, observer.errs, 1)
	assert.ErrorIs(t, observer.errs[0], ErrProviderCredentialMissing)
}

func TestSyncService_ProviderFailure(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	provider := &mockProvider{}
	provider.On("ListEvents", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("503"))

	_, err := newSyncServiceForTest(store, provider).Sync(context.Background(), ownerPrincipal())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.Empty(t, store.activitiesOfType(ActivityCalendarSync))
}
