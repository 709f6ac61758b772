package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/eduflow/billing-engine/internal/domain"
)

// Courses and users belong to other domains; the engine only ever reads them.

type courseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) CourseRepository {
	return &courseRepository{db: db}
}

func (r *courseRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Course, error) {
	query := `
		SELECT id, title, payment_type, monthly_price, total_price, duration_months, currency, created_at
		FROM courses
		WHERE id = $1
	`

	var course domain.Course
	if err := r.db.GetContext(ctx, &course, query, id); err != nil {
		return nil, err
	}

	return &course, nil
}

type userRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	query := `SELECT id, name, email, role, created_at FROM users WHERE id = $1`

	var user domain.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		return nil, err
	}

	return &user, nil
}
