package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bugtally/notify-engine/internal/model"
	"github.com/bugtally/notify-engine/internal/repository"
)

// directoryRepository reads tracker-owned tables. It never writes them;
// the tracker application owns that schema.
type directoryRepository struct {
	BaseRepository
}

func NewDirectoryRepository(base BaseRepository) repository.DirectoryRepository {
	return &directoryRepository{base}
}

func (r *directoryRepository) GetUser(ctx context.Context, id int64) (*model.User, error) {
	query := `SELECT id, email, enabled FROM users WHERE id = $1`

	var u model.User
	if err := r.db.GetContext(ctx, &u, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("user %d not found", id)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &u, nil
}

func (r *directoryRepository) ListProjectMembers(ctx context.Context, projectID int64) ([]*model.User, error) {
	query := `
		SELECT u.id, u.email, u.enabled
		FROM users u
		JOIN project_members pm ON pm.user_id = u.id
		WHERE pm.project_id = $1
		AND u.enabled = TRUE
	`

	var users []*model.User
	if err := r.db.SelectContext(ctx, &users, query, projectID); err != nil {
		return nil, fmt.Errorf("failed to list project members: %w", err)
	}
	return users, nil
}
