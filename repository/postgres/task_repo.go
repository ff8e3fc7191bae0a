package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/miniplanner/backend/domain"
	"github.com/miniplanner/backend/repository"
)

type taskRepository struct {
	pool *pgxpool.Pool
}

// NewTaskRepository returns a Postgres-backed implementation of TaskDocuments.
// Documents are keyed (user_id, id), so the same task id can never exist
// twice inside one user's collection.
func NewTaskRepository(pool *pgxpool.Pool) repository.TaskDocuments {
	return &taskRepository{pool: pool}
}

func (r *taskRepository) ListByUser(ctx context.Context, userID string) ([]domain.Task, error) {
	const query = `
	SELECT id, title, course, due_date, priority, completed, created_at
	FROM tasks
	WHERE user_id = $1
	ORDER BY created_at DESC
	`
	rows, err := r.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []domain.Task{}
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *task)
	}
	return tasks, rows.Err()
}

func (r *taskRepository) Upsert(ctx context.Context, userID string, task *domain.Task) error {
	if task == nil || task.ID == "" {
		return domain.ErrInvalidPayload
	}
	due, err := domain.ParseDueDate(task.DueDate)
	if err != nil {
		return err
	}

	const query = `
	INSERT INTO tasks (user_id, id, title, course, due_date, priority, completed, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (user_id, id) DO UPDATE
	SET title = EXCLUDED.title,
		course = EXCLUDED.course,
		due_date = EXCLUDED.due_date,
		priority = EXCLUDED.priority,
		completed = EXCLUDED.completed,
		created_at = EXCLUDED.created_at
	`
	_, err = r.pool.Exec(ctx, query,
		userID,
		task.ID,
		task.Title,
		task.Course,
		due,
		string(task.Priority),
		task.Completed,
		task.CreatedAt,
	)
	return err
}

func (r *taskRepository) SetCompleted(ctx context.Context, userID, id string, completed bool) error {
	// Deliberately touches a single column so a concurrent edit of any other
	// field cannot be lost.
	const query = `UPDATE tasks SET completed = $3 WHERE user_id = $1 AND id = $2`
	tag, err := r.pool.Exec(ctx, query, userID, id, completed)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, userID, id string) error {
	// Deleting a document that is already gone is a no-op, not an error.
	const query = `DELETE FROM tasks WHERE user_id = $1 AND id = $2`
	_, err := r.pool.Exec(ctx, query, userID, id)
	return err
}

func scanTask(row interface {
	Scan(dest ...interface{}) error
}) (*domain.Task, error) {
	var (
		task     domain.Task
		due      time.Time
		priority string
	)

	if err := row.Scan(
		&task.ID,
		&task.Title,
		&task.Course,
		&due,
		&priority,
		&task.Completed,
		&task.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrTaskNotFound
		}
		return nil, err
	}

	task.DueDate = due.Format(domain.DueDateLayout)
	task.Priority = domain.Priority(priority)
	return &task, nil
}
