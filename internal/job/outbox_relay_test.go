package job_test

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sefazor/storycredits/internal/job"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"github.com/sefazor/storycredits/internal/testutil"
	"github.com/sefazor/storycredits/pkg/mq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func seedMessages(t *testing.T, repo repository.OutboxRepository, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		require.NoError(t, repo.Create(context.Background(), &models.OutboxMessage{
			MessageKey: "user_1",
			Topic:      "credit-ledger",
			Payload:    `{"amount":1}`,
			Status:     models.OutboxStatusPending,
		}))
	}
}

func statusOf(t *testing.T, db *gorm.DB, status string) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(&models.OutboxMessage{}).Where("status = ?", status).Count(&n).Error)
	return n
}

func TestOutboxRelay_SendsPending(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	seedMessages(t, repo, 3)

	sp := mocks.NewSyncProducer(t, sarama.NewConfig())
	for i := 0; i < 3; i++ {
		sp.ExpectSendMessageAndSucceed()
	}
	relay := job.NewOutboxRelay(repo, mq.NewProducer(sp), job.RelayConfig{BatchSize: 10, MaxRetryCount: 5}, zap.NewNop())

	assert.Equal(t, 3, relay.ProcessPending(context.Background()))
	assert.EqualValues(t, 3, statusOf(t, db, models.OutboxStatusSent))
	assert.Equal(t, 0, relay.ProcessPending(context.Background()))
	require.NoError(t, sp.Close())
}

func TestOutboxRelay_GivesUpAfterMaxRetries(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	seedMessages(t, repo, 1)

	sp := mocks.NewSyncProducer(t, sarama.NewConfig())
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	relay := job.NewOutboxRelay(repo, mq.NewProducer(sp), job.RelayConfig{BatchSize: 10, MaxRetryCount: 2}, zap.NewNop())

	assert.Equal(t, 0, relay.ProcessPending(context.Background()))
	assert.EqualValues(t, 1, statusOf(t, db, models.OutboxStatusPending))

	assert.Equal(t, 0, relay.ProcessPending(context.Background()))
	assert.EqualValues(t, 1, statusOf(t, db, models.OutboxStatusFailed))

	var msg models.OutboxMessage
	require.NoError(t, db.First(&msg).Error)
	assert.Equal(t, 2, msg.RetryCount)
	require.NoError(t, sp.Close())
}

func TestOutboxRelay_KeepsKeyOrderAfterFailure(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	for _, m := range []struct {
		key          string
		balanceAfter int64
	}{
		{"user_1", 3},
		{"user_1", 1},
		{"user_2", 5},
	} {
		payload, err := json.Marshal(models.LedgerChange{UserID: m.key, BalanceAfter: m.balanceAfter})
		require.NoError(t, err)
		require.NoError(t, repo.Create(context.Background(), &models.OutboxMessage{
			MessageKey: m.key,
			Topic:      "credit-ledger",
			Payload:    string(payload),
			Status:     models.OutboxStatusPending,
		}))
	}

	var published []string
	record := func(val []byte) error {
		var change models.LedgerChange
		if err := json.Unmarshal(val, &change); err != nil {
			return err
		}
		published = append(published, fmt.Sprintf("%s:%d", change.UserID, change.BalanceAfter))
		return nil
	}

	sp := mocks.NewSyncProducer(t, sarama.NewConfig())
	sp.ExpectSendMessageWithCheckerFunctionAndFail(func(val []byte) error { return nil }, sarama.ErrOutOfBrokers)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(record)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(record)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(record)
	relay := job.NewOutboxRelay(repo, mq.NewProducer(sp), job.RelayConfig{BatchSize: 10, MaxRetryCount: 5}, zap.NewNop())

	assert.Equal(t, 1, relay.ProcessPending(context.Background()))
	assert.Equal(t, []string{"user_2:5"}, published)

	var second models.OutboxMessage
	require.NoError(t, db.Order("id ASC").Offset(1).First(&second).Error)
	assert.Equal(t, models.OutboxStatusPending, second.Status)
	assert.Equal(t, 0, second.RetryCount)

	assert.Equal(t, 2, relay.ProcessPending(context.Background()))
	assert.Equal(t, []string{"user_2:5", "user_1:3", "user_1:1"}, published)
	assert.EqualValues(t, 3, statusOf(t, db, models.OutboxStatusSent))
	require.NoError(t, sp.Close())
}

func TestOutboxRelay_StartStop(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repository.NewOutboxRepository(db)
	seedMessages(t, repo, 1)

	sp := mocks.NewSyncProducer(t, sarama.NewConfig())
	sp.ExpectSendMessageAndSucceed()
	relay := job.NewOutboxRelay(repo, mq.NewProducer(sp), job.RelayConfig{Interval: 5 * time.Millisecond}, zap.NewNop())

	go relay.Start(context.Background())
	assert.Eventually(t, func() bool {
		var n int64
		db.Model(&models.OutboxMessage{}).Where("status = ?", models.OutboxStatusSent).Count(&n)
		return n == 1
	}, time.Second, 5*time.Millisecond)
	relay.Stop()
	require.NoError(t, sp.Close())
}
