package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/bugtally/notify-engine/internal/clock"
	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
	"github.com/bugtally/notify-engine/pkg/logger"
)

// Service exposes the append-only notification history and the channel
// audit log to the API layer.
type Service struct {
	history repository.HistoryRepository
	audit   repository.ChannelAuditRepository
	clock   clock.Clock
	logger  *logger.Logger
}

func NewService(history repository.HistoryRepository, audit repository.ChannelAuditRepository, clk clock.Clock, logger *logger.Logger) *Service {
	return &Service{history: history, audit: audit, clock: clk, logger: logger}
}

// List returns one page of a user's history, newest first, plus the total
// matching count for pagination.
func (s *Service) List(ctx context.Context, userID int64, filters model.HistoryFilters, p model.Pagination) ([]*model.NotificationHistoryEntry, int64, error) {
	entries, total, err := s.history.List(ctx, userID, filters, p)
	if err != nil {
		return nil, 0, apperrors.NewInternal(err)
	}
	return entries, total, nil
}

func (s *Service) CountUnread(ctx context.Context, userID int64) (int64, error) {
	count, err := s.history.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.NewInternal(err)
	}
	return count, nil
}

// MarkRead marks the given entries read and returns how many rows changed.
// Entries already read are left untouched, so repeating the call is safe.
func (s *Service) MarkRead(ctx context.Context, userID int64, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, apperrors.NewBadRequest("no notification ids given", nil)
	}

	affected, err := s.history.MarkRead(ctx, userID, ids, s.clock.Now().Unix())
	if err != nil {
		return 0, apperrors.NewInternal(err)
	}
	return affected, nil
}

// MarkAllRead marks every unread entry for the user. A second call is a
// no-op affecting zero rows.
func (s *Service) MarkAllRead(ctx context.Context, userID int64) (int64, error) {
	affected, err := s.history.MarkAllRead(ctx, userID, s.clock.Now().Unix())
	if err != nil {
		return 0, apperrors.NewInternal(err)
	}
	return affected, nil
}

func (s *Service) GetStats(ctx context.Context, userID int64) (*model.HistoryStats, error) {
	stats, err := s.history.GetStats(ctx, userID, s.clock.Now().Unix())
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return stats, nil
}
