package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/mocks"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/sefazor/storycredits/internal/service"
	"github.com/sefazor/storycredits/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func parkRequest(eventID string) service.ParkRequest {
	return service.ParkRequest{
		EventID:   eventID,
		EventType: "checkout.session.completed",
		Reason:    models.DeadLetterReasonUnknownSKU,
		Detail:    "unknown price price_x",
		Payload:   []byte(`{"id":"` + eventID + `"}`),
	}
}

func TestDeadLetter_Park(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewDeadLetterRepository(testutil.NewDB(t))
	archive := &mocks.PayloadArchive{}
	notifier := &mocks.DeadLetterNotifier{}
	svc := service.NewDeadLetterService(repo, archive, notifier, zap.NewNop())

	archive.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, "dead-letters/") && strings.HasSuffix(key, "/evt_1.json")
	}), mock.Anything, "application/json").Return(nil).Once()
	notifier.On("NotifyDeadLetter", mock.Anything, mock.AnythingOfType("*models.DeadLetter")).Return(nil).Once()

	letter, err := svc.Park(ctx, parkRequest("evt_1"))
	require.NoError(t, err)
	assert.Equal(t, models.DeadLetterStatusOpen, letter.Status)
	assert.Equal(t, 1, letter.Attempts)
	assert.NotEmpty(t, letter.ArchiveKey)

	t.Run("redelivery counts an attempt without a second alert", func(t *testing.T) {
		req := parkRequest("evt_1")
		req.Detail = "still unknown"
		again, err := svc.Park(ctx, req)
		require.NoError(t, err)
		assert.Equal(t, letter.ID, again.ID)
		assert.Equal(t, 2, again.Attempts)

		stored, err := svc.Get(ctx, letter.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stored.Attempts)
		assert.Equal(t, "still unknown", stored.Detail)
	})

	archive.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestDeadLetter_ParkSurvivesSideChannelFailures(t *testing.T) {
	repo := repository.NewDeadLetterRepository(testutil.NewDB(t))
	archive := &mocks.PayloadArchive{}
	notifier := &mocks.DeadLetterNotifier{}
	archive.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(errors.New("bucket missing"))
	notifier.On("NotifyDeadLetter", mock.Anything, mock.Anything).Return(errors.New("smtp down"))

	svc := service.NewDeadLetterService(repo, archive, notifier, zap.NewNop())
	letter, err := svc.Park(context.Background(), parkRequest("evt_2"))
	require.NoError(t, err)
	assert.Empty(t, letter.ArchiveKey)
}

func TestDeadLetter_Lifecycle(t *testing.T) {
	ctx := context.Background()
	svc := service.NewDeadLetterService(repository.NewDeadLetterRepository(testutil.NewDB(t)), nil, nil, zap.NewNop())

	a, err := svc.Park(ctx, parkRequest("evt_a"))
	require.NoError(t, err)
	b, err := svc.Park(ctx, parkRequest("evt_b"))
	require.NoError(t, err)

	open, err := svc.List(ctx, models.DeadLetterStatusOpen, 0)
	require.NoError(t, err)
	assert.Len(t, open, 2)

	resolved, err := svc.Resolve(ctx, a.ID, "credited manually")
	require.NoError(t, err)
	assert.Equal(t, models.DeadLetterStatusResolved, resolved.Status)
	assert.NotNil(t, resolved.ResolvedAt)

	_, err = svc.Resolve(ctx, a.ID, "again")
	assert.True(t, service.IsCode(err, constants.ErrCodeDeadLetterClosed))

	require.NoError(t, svc.MarkReplayed(ctx, b.ID, "replayed after price table fix"))
	open, err = svc.List(ctx, models.DeadLetterStatusOpen, 0)
	require.NoError(t, err)
	assert.Empty(t, open)

	t.Run("closed letters are not reopened by redelivery", func(t *testing.T) {
		again, err := svc.Park(ctx, parkRequest("evt_a"))
		require.NoError(t, err)
		assert.Equal(t, models.DeadLetterStatusResolved, again.Status)
		assert.Equal(t, 1, again.Attempts)
	})

	t.Run("missing letter", func(t *testing.T) {
		_, err := svc.Get(ctx, 999)
		assert.True(t, service.IsCode(err, constants.ErrCodeDeadLetterNotFound))
		_, err = svc.Resolve(ctx, 999, "x")
		assert.True(t, service.IsCode(err, constants.ErrCodeDeadLetterNotFound))
	})
}
