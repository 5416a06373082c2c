package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/tasktrack/apiserver/internal/db"
	"github.com/tasktrack/apiserver/types"
)

// TaskRepository handles persistence for tasks. Every read and write is
// scoped to (id, owner_id, NOT is_deleted); rows outside that scope are
// reported as ErrNotFound.
type TaskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskColumns = `id, owner_id, title, description, status, created_at, updated_at, is_deleted`

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *TaskRepository) Create(ctx context.Context, task types.Task) (types.Task, error) {
	const query = `
		INSERT INTO tasks (owner_id, title, description, status, created_at, updated_at, is_deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	if err := r.db.QueryRowContext(
		ctx,
		query,
		task.OwnerID,
		task.Title,
		nullString(task.Description),
		task.Status,
		task.CreatedAt,
		task.UpdatedAt,
		task.IsDeleted,
	).Scan(&task.ID); err != nil {
		return types.Task{}, translate(err)
	}
	return task, nil
}

func (r *TaskRepository) Get(ctx context.Context, id, ownerID int64) (types.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, err
	}
	return task, nil
}

func (r *TaskRepository) List(ctx context.Context, ownerID int64, offset, limit int) ([]types.Task, error) {
	const query = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE owner_id = $1 AND is_deleted = FALSE
		ORDER BY id
		OFFSET $2 LIMIT $3`
	rows, err := r.db.QueryContext(ctx, query, ownerID, offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := make([]types.Task, 0, limit)
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Mutate locks the owner-scoped row, hands a copy to fn and persists the
// mutable columns (status, is_deleted, updated_at) when fn returns nil. The
// lock is held until commit, so concurrent mutations of the same task run
// one after another and each fn sees the previous winner's state.
func (r *TaskRepository) Mutate(ctx context.Context, id, ownerID int64, fn func(*types.Task) error) (types.Task, error) {
	const selectQuery = `
		SELECT ` + taskColumns + `
		FROM tasks
		WHERE id = $1 AND owner_id = $2 AND is_deleted = FALSE
		FOR UPDATE`
	const updateQuery = `
		UPDATE tasks
		SET status = $1,
			is_deleted = $2,
			updated_at = $3
		WHERE id = $4`

	var task types.Task
	err := db.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		var err error
		task, err = scanTask(tx.QueryRowContext(ctx, selectQuery, id, ownerID))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return err
		}

		if err := fn(&task); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, updateQuery, task.Status, task.IsDeleted, task.UpdatedAt, task.ID)
		return err
	})
	if err != nil {
		return types.Task{}, err
	}
	return task, nil
}

func scanTask(row rowScanner) (types.Task, error) {
	var task types.Task
	var description sql.NullString
	if err := row.Scan(
		&task.ID,
		&task.OwnerID,
		&task.Title,
		&description,
		&task.Status,
		&task.CreatedAt,
		&task.UpdatedAt,
		&task.IsDeleted,
	); err != nil {
		return types.Task{}, err
	}
	if description.Valid {
		task.Description = &description.String
	}
	return task, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
