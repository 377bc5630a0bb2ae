package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/syncd-app/syncd-api/internal/models"
)

var ErrTaskNotFound = errors.New("task not found")

type TaskRepository interface {
	ListByUser(ctx context.Context, userID int64) ([]models.Task, error)
	GetByID(ctx context.Context, taskID int64) (models.Task, error)
	Create(ctx context.Context, task models.Task) (models.Task, error)
	Update(ctx context.Context, task models.Task) (models.Task, error)
	Delete(ctx context.Context, taskID, userID int64) error
	ListDueBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Task, error)
}

type taskRepository struct {
	db *sqlx.DB
	tm *TransactionManager
}

func NewTaskRepository(db *sqlx.DB, tm *TransactionManager) TaskRepository {
	return &taskRepository{db: db, tm: tm}
}

type taskRow struct {
	models.Task
	TagNames pq.StringArray `db:"tag_names"`
}

const taskWithTagsQuery = `
	SELECT t.id, t.user_id, t.title, t.description, t.due_date, t.priority, t.status,
	       t.created_at, t.updated_at,
	       ARRAY_REMOVE(ARRAY_AGG(DISTINCT tt.tag_name), NULL) AS tag_names
	FROM tasks t
	LEFT JOIN task_tags tt ON t.id = tt.task_id
	%s
	GROUP BY t.id
	%s`

func (r *taskRepository) ListByUser(ctx context.Context, userID int64) ([]models.Task, error) {
	query := fmt.Sprintf(taskWithTagsQuery, "WHERE t.user_id = $1", "ORDER BY t.due_date ASC NULLS LAST")

	var rows []taskRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, r.db), &rows, query, userID); err != nil {
		return nil, errors.Wrap(err, "select tasks")
	}

	tasks := make([]models.Task, 0, len(rows))
	for _, row := range rows {
		task := row.Task
		task.Tags = row.TagNames
		tasks = append(tasks, task)
	}
	return tasks, nil
}

func (r *taskRepository) GetByID(ctx context.Context, taskID int64) (models.Task, error) {
	query := fmt.Sprintf(taskWithTagsQuery, "WHERE t.id = $1", "")

	var row taskRow
	err := sqlx.GetContext(ctx, GetExecutor(ctx, r.db), &row, query, taskID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Task{}, ErrTaskNotFound
	}
	if err != nil {
		return models.Task{}, errors.Wrap(err, "select task")
	}

	task := row.Task
	task.Tags = row.TagNames
	return task, nil
}

// Create inserts the task and its tags in one transaction.
func (r *taskRepository) Create(ctx context.Context, task models.Task) (models.Task, error) {
	err := r.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := GetExecutor(txCtx, r.db)

		const insert = `
			INSERT INTO tasks (user_id, title, description, due_date, priority, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at, updated_at`
		if err := ex.QueryRowxContext(txCtx, insert,
			task.UserID, task.Title, task.Description, task.DueDate, task.Priority, task.Status,
		).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt); err != nil {
			return errors.Wrap(err, "insert task")
		}

		return replaceTaskTags(txCtx, ex, task.ID, task.Tags)
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

// Update rewrites the task row and replaces its tag set in one transaction.
// Ownership is enforced by the WHERE clause.
func (r *taskRepository) Update(ctx context.Context, task models.Task) (models.Task, error) {
	err := r.tm.WithTransaction(ctx, func(txCtx context.Context) error {
		ex := GetExecutor(txCtx, r.db)

		const update = `
			UPDATE tasks
			SET title = $1, description = $2, due_date = $3, priority = $4, status = $5, updated_at = now()
			WHERE id = $6 AND user_id = $7
			RETURNING created_at, updated_at`
		err := ex.QueryRowxContext(txCtx, update,
			task.Title, task.Description, task.DueDate, task.Priority, task.Status, task.ID, task.UserID,
		).Scan(&task.CreatedAt, &task.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrTaskNotFound
		}
		if err != nil {
			return errors.Wrap(err, "update task")
		}

		return replaceTaskTags(txCtx, ex, task.ID, task.Tags)
	})
	if err != nil {
		return models.Task{}, err
	}
	return task, nil
}

func (r *taskRepository) Delete(ctx context.Context, taskID, userID int64) error {
	result, err := GetExecutor(ctx, r.db).ExecContext(ctx,
		`DELETE FROM tasks WHERE id = $1 AND user_id = $2`, taskID, userID)
	if err != nil {
		return errors.Wrap(err, "delete task")
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrTaskNotFound
	}
	return nil
}

// ListDueBetween returns a user's tasks due inside the window, earliest
// first. Used by the daily agenda email.
func (r *taskRepository) ListDueBetween(ctx context.Context, userID int64, from, to time.Time) ([]models.Task, error) {
	const query = `
		SELECT id, user_id, title, description, due_date, priority, status, created_at, updated_at
		FROM tasks
		WHERE user_id = $1 AND due_date BETWEEN $2 AND $3
		ORDER BY due_date ASC`

	var tasks []models.Task
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, r.db), &tasks, query, userID, from, to); err != nil {
		return nil, errors.Wrap(err, "select due tasks")
	}
	return tasks, nil
}

func replaceTaskTags(ctx context.Context, ex sqlx.ExtContext, taskID int64, tags []string) error {
	if _, err := ex.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id = $1`, taskID); err != nil {
		return errors.Wrap(err, "clear task tags")
	}

	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		if _, err := ex.ExecContext(ctx,
			`INSERT INTO task_tags (task_id, tag_name) VALUES ($1, $2) ON CONFLICT DO NOTHING`,
			taskID, tag,
		); err != nil {
			return errors.Wrap(err, "insert task tag")
		}
	}
	return nil
}
