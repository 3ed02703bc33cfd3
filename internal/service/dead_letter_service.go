package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sefazor/storycredits/internal/constants"
	"github.com/sefazor/storycredits/internal/models"
	"github.com/sefazor/storycredits/internal/repository"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// PayloadArchive keeps a copy of parked payloads outside the database.
type PayloadArchive interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
}

type DeadLetterNotifier interface {
	NotifyDeadLetter(ctx context.Context, letter *models.DeadLetter) error
}

type ParkRequest struct {
	EventID   string
	EventType string
	Reason    string
	Detail    string
	Payload   []byte
}

type DeadLetterService interface {
	Park(ctx context.Context, req ParkRequest) (*models.DeadLetter, error)
	List(ctx context.Context, status models.DeadLetterStatus, limit int) ([]models.DeadLetter, error)
	Get(ctx context.Context, id uint) (*models.DeadLetter, error)
	Resolve(ctx context.Context, id uint, note string) (*models.DeadLetter, error)
	MarkReplayed(ctx context.Context, id uint, note string) error
	RecordAttempt(ctx context.Context, id uint, reason, detail string) error
}

type deadLetterService struct {
	repo     repository.DeadLetterRepository
	archive  PayloadArchive
	notifier DeadLetterNotifier
	log      *zap.Logger
}

// NewDeadLetterService accepts nil archive and notifier; both are optional.
func NewDeadLetterService(repo repository.DeadLetterRepository, archive PayloadArchive, notifier DeadLetterNotifier, log *zap.Logger) DeadLetterService {
	return &deadLetterService{repo: repo, archive: archive, notifier: notifier, log: log}
}

// Park durably records an event that was acknowledged but not applied. Only
// the database write can fail the call; archive and alert are best effort.
func (s *deadLetterService) Park(ctx context.Context, req ParkRequest) (*models.DeadLetter, error) {
	letter := &models.DeadLetter{
		EventID:   req.EventID,
		EventType: req.EventType,
		Reason:    req.Reason,
		Detail:    req.Detail,
		Payload:   datatypes.JSON(req.Payload),
		Status:    models.DeadLetterStatusOpen,
		Attempts:  1,
	}

	created, stored, err := s.repo.CreateIfNotExists(ctx, letter)
	if err != nil {
		s.log.Error("error create dead letter", zap.String("event_id", req.EventID), zap.Error(err))
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}

	if !created {
		if stored.Status == models.DeadLetterStatusOpen {
			if err := s.repo.RecordAttempt(ctx, stored.ID, req.Reason, req.Detail); err != nil {
				return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
			}
			stored.Attempts++
			stored.Reason = req.Reason
			stored.Detail = req.Detail
		}
		s.log.Info("Dead letter already recorded",
			zap.String("event_id", req.EventID),
			zap.Uint("dead_letter_id", stored.ID),
		)
		return stored, nil
	}

	s.log.Warn("Payment event dead-lettered",
		zap.String("event_id", req.EventID),
		zap.String("event_type", req.EventType),
		zap.String("reason", req.Reason),
		zap.String("detail", req.Detail),
	)

	s.archivePayload(ctx, stored, req.Payload)
	s.notify(ctx, stored)
	return stored, nil
}

func (s *deadLetterService) archivePayload(ctx context.Context, letter *models.DeadLetter, payload []byte) {
	if s.archive == nil || len(payload) == 0 {
		return
	}

	key := fmt.Sprintf("dead-letters/%s/%s.json", letter.CreatedAt.UTC().Format("2006/01/02"), letter.EventID)
	if err := s.archive.Put(ctx, key, payload, "application/json"); err != nil {
		s.log.Warn("Failed to archive dead letter payload", zap.String("event_id", letter.EventID), zap.Error(err))
		return
	}
	if err := s.repo.SetArchiveKey(ctx, letter.ID, key); err != nil {
		s.log.Warn("Failed to store archive key", zap.String("event_id", letter.EventID), zap.Error(err))
		return
	}
	letter.ArchiveKey = key
}

func (s *deadLetterService) notify(ctx context.Context, letter *models.DeadLetter) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyDeadLetter(ctx, letter); err != nil {
		s.log.Warn("Failed to send dead letter alert", zap.String("event_id", letter.EventID), zap.Error(err))
	}
}

func (s *deadLetterService) List(ctx context.Context, status models.DeadLetterStatus, limit int) ([]models.DeadLetter, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	letters, err := s.repo.List(ctx, status, limit)
	if err != nil {
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}
	return letters, nil
}

func (s *deadLetterService) Get(ctx context.Context, id uint) (*models.DeadLetter, error) {
	letter, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrDeadLetterNotFound) {
			return nil, NewServiceError(constants.ErrCodeDeadLetterNotFound, err)
		}
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}
	return letter, nil
}

// Resolve closes an open letter after manual reconciliation.
func (s *deadLetterService) Resolve(ctx context.Context, id uint, note string) (*models.DeadLetter, error) {
	letter, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if letter.Status != models.DeadLetterStatusOpen {
		return nil, NewServiceError(constants.ErrCodeDeadLetterClosed, fmt.Errorf("dead letter %d is %s", id, letter.Status))
	}

	if err := s.repo.UpdateStatus(ctx, id, models.DeadLetterStatusResolved, note); err != nil {
		return nil, NewServiceError(constants.ErrCodeOperationFailed, err)
	}

	now := time.Now()
	letter.Status = models.DeadLetterStatusResolved
	letter.ResolutionNote = note
	letter.ResolvedAt = &now

	s.log.Info("Dead letter resolved", zap.Uint("dead_letter_id", id), zap.String("event_id", letter.EventID))
	return letter, nil
}

func (s *deadLetterService) MarkReplayed(ctx context.Context, id uint, note string) error {
	if err := s.repo.UpdateStatus(ctx, id, models.DeadLetterStatusReplayed, note); err != nil {
		if errors.Is(err, repository.ErrDeadLetterNotFound) {
			return NewServiceError(constants.ErrCodeDeadLetterNotFound, err)
		}
		return NewServiceError(constants.ErrCodeOperationFailed, err)
	}
	return nil
}

func (s *deadLetterService) RecordAttempt(ctx context.Context, id uint, reason, detail string) error {
	if err := s.repo.RecordAttempt(ctx, id, reason, detail); err != nil {
		return NewServiceError(constants.ErrCodeOperationFailed, err)
	}
	return nil
}
