package postgres

import (
	"context"
	"fmt"

	"github.com/littlefarms/taskboard-api/internal/model"
	"github.com/littlefarms/taskboard-api/internal/repository"
)

type userRepository struct {
	BaseRepository
}

func NewUserRepository(base BaseRepository) repository.UserRepository {
	return &userRepository{base}
}

func (r *userRepository) Get(ctx context.Context, id string) (*model.User, error) {
	query := `
		SELECT * FROM users
		WHERE id = $1
	`

	var user model.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}
