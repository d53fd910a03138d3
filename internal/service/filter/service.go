package filter

import (
	"context"

	"github.com/google/uuid"

	"github.com/bugtally/notify-engine/internal/clock"
	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
	apperrors "github.com/bugtally/notify-engine/pkg/errors"
)

// Service owns filter CRUD on behalf of the API layer. The Engine reads
// through the same repository, so writes are visible to the next dispatch
// immediately.
type Service struct {
	repo  repository.FilterRepository
	clock clock.Clock
}

func NewService(repo repository.FilterRepository, clk clock.Clock) *Service {
	return &Service{repo: repo, clock: clk}
}

func (s *Service) Create(ctx context.Context, f *model.NotificationFilter) error {
	if err := f.Validate(); err != nil {
		return apperrors.NewBadRequest(err.Error(), err)
	}

	f.ID = uuid.New()
	now := s.clock.Now().Unix()
	f.DateCreated = now
	f.DateModified = now

	if err := s.repo.Create(ctx, f); err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}

func (s *Service) Get(ctx context.Context, userID int64, id uuid.UUID) (*model.NotificationFilter, error) {
	f, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, apperrors.NewNotFound("filter", err)
	}
	if f.UserID != userID {
		return nil, apperrors.NewNotFound("filter", nil)
	}
	return f, nil
}

// Update replaces the mutable fields of an existing filter. Ownership is
// checked against the stored row, not the request.
func (s *Service) Update(ctx context.Context, userID int64, f *model.NotificationFilter) error {
	existing, err := s.Get(ctx, userID, f.ID)
	if err != nil {
		return err
	}

	if err := f.Validate(); err != nil {
		return apperrors.NewBadRequest(err.Error(), err)
	}

	f.UserID = existing.UserID
	f.DateCreated = existing.DateCreated
	f.DateModified = s.clock.Now().Unix()

	if err := s.repo.Update(ctx, f); err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}

func (s *Service) Delete(ctx context.Context, userID int64, id uuid.UUID) error {
	if _, err := s.Get(ctx, userID, id); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return apperrors.NewInternal(err)
	}
	return nil
}

func (s *Service) ListForUser(ctx context.Context, userID int64) ([]*model.NotificationFilter, error) {
	filters, err := s.repo.ListForUser(ctx, userID)
	if err != nil {
		return nil, apperrors.NewInternal(err)
	}
	return filters, nil
}
