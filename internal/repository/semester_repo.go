package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"teaching-workload/internal/model"
)

type SemesterRepository struct {
	pool *pgxpool.Pool
}

func NewSemesterRepository(pool *pgxpool.Pool) *SemesterRepository {
	return &SemesterRepository{pool: pool}
}

func (r *SemesterRepository) FindByID(ctx context.Context, id int64) (model.Semester, error) {
	var s model.Semester
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, active FROM semesters WHERE id = $1`, id).
		Scan(&s.ID, &s.Name, &s.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Semester{}, model.ErrSemesterNotFound
	}
	if err != nil {
		return model.Semester{}, fmt.Errorf("find semester: %w", err)
	}
	return s, nil
}

func (r *SemesterRepository) List(ctx context.Context) ([]model.Semester, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, active FROM semesters ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	defer rows.Close()

	semesters := make([]model.Semester, 0)
	for rows.Next() {
		var s model.Semester
		if err := rows.Scan(&s.ID, &s.Name, &s.Active); err != nil {
			return nil, fmt.Errorf("scan semester: %w", err)
		}
		semesters = append(semesters, s)
	}
	return semesters, rows.Err()
}

func (r *SemesterRepository) Create(ctx context.Context, s model.Semester) (model.Semester, error) {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO semesters (name, active) VALUES ($1, $2) RETURNING id`,
		s.Name, s.Active).Scan(&s.ID)
	if isUniqueViolation(err) {
		return model.Semester{}, model.ErrSemesterAlreadyExists
	}
	if err != nil {
		return model.Semester{}, fmt.Errorf("create semester: %w", err)
	}
	return s, nil
}

func (r *SemesterRepository) Update(ctx context.Context, s model.Semester) (model.Semester, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE semesters SET name = $2, active = $3 WHERE id = $1`,
		s.ID, s.Name, s.Active)
	if isUniqueViolation(err) {
		return model.Semester{}, model.ErrSemesterAlreadyExists
	}
	if err != nil {
		return model.Semester{}, fmt.Errorf("update semester: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.Semester{}, model.ErrSemesterNotFound
	}
	return s, nil
}
