package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"todohub/internal/models"
)

// ErrTaskNotFound is returned when a task id does not exist or belongs to
// another user.
var ErrTaskNotFound = errors.New("task not found")

type TaskRepository interface {
	Store(ctx context.Context, task *models.Task) error
	FindByID(ctx context.Context, id int64, userID string) (*models.Task, error)
	FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error)
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id int64, userID string) error
	ListDueBetween(ctx context.Context, start, end time.Time) ([]models.Task, error)
}

type taskRepository struct {
	db *sql.DB
}

func NewTaskRepository(db *sql.DB) TaskRepository {
	return &taskRepository{db: db}
}

const taskColumns = `id, user_id, title, description, completed, priority,
       due_date, reminder_at, tags, recurrence_rule, parent_task_id, created_at, updated_at`

func scanTask(row interface{ Scan(...interface{}) error }) (*models.Task, error) {
	t := &models.Task{}
	err := row.Scan(
		&t.ID, &t.UserID, &t.Title, &t.Description, &t.Completed, &t.Priority,
		&t.DueDate, &t.ReminderAt, pq.Array(&t.Tags), &t.RecurrenceRule,
		&t.ParentTaskID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *taskRepository) Store(ctx context.Context, task *models.Task) error {
	query := `
		INSERT INTO tasks (
			user_id, title, description, completed, priority,
			due_date, reminder_at, tags, recurrence_rule, parent_task_id, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		RETURNING id, created_at, updated_at`
	return r.db.QueryRowContext(ctx, query,
		task.UserID, task.Title, task.Description, task.Completed, task.Priority,
		task.DueDate, task.ReminderAt, pq.Array(task.Tags), task.RecurrenceRule,
		task.ParentTaskID, task.CreatedAt, task.UpdatedAt,
	).Scan(&task.ID, &task.CreatedAt, &task.UpdatedAt)
}

func (r *taskRepository) FindByID(ctx context.Context, id int64, userID string) (*models.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE id = $1 AND user_id = $2`
	task, err := scanTask(r.db.QueryRowContext(ctx, query, id, userID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTaskNotFound
		}
		return nil, err
	}
	return task, nil
}

func (r *taskRepository) FindAll(ctx context.Context, filter models.TaskFilter) ([]models.Task, error) {
	baseQuery := `SELECT ` + taskColumns + ` FROM tasks`

	conditions := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}
	argID := 2

	if filter.Completed != nil {
		conditions = append(conditions, fmt.Sprintf("completed = $%d", argID))
		args = append(args, *filter.Completed)
		argID++
	}
	if filter.Priority != nil {
		conditions = append(conditions, fmt.Sprintf("priority = $%d", argID))
		args = append(args, *filter.Priority)
		argID++
	}
	if filter.Search != nil {
		conditions = append(conditions, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", argID, argID))
		args = append(args, "%"+*filter.Search+"%")
		argID++
	}

	baseQuery += " WHERE " + strings.Join(conditions, " AND ")
	baseQuery += " ORDER BY " + sortClause(filter.SortBy, filter.SortOrder)

	rows, err := r.db.QueryContext(ctx, baseQuery, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// sortClause whitelists sortable columns; anything else falls back to
// created_at descending.
func sortClause(sortBy, order string) string {
	dir := "DESC"
	if strings.EqualFold(order, "asc") {
		dir = "ASC"
	}
	switch sortBy {
	case "due_date", "title", "created_at":
		return sortBy + " " + dir
	case "priority":
		return fmt.Sprintf(
			"CASE priority WHEN 'high' THEN 3 WHEN 'medium' THEN 2 WHEN 'low' THEN 1 ELSE 0 END %s", dir)
	default:
		return "created_at DESC"
	}
}

func (r *taskRepository) Update(ctx context.Context, task *models.Task) error {
	query := `
		UPDATE tasks SET
			title=$1, description=$2, completed=$3, priority=$4, due_date=$5,
			reminder_at=$6, tags=$7, recurrence_rule=$8, updated_at=$9
		WHERE id=$10 AND user_id=$11`
	res, err := r.db.ExecContext(ctx, query,
		task.Title, task.Description, task.Completed, task.Priority, task.DueDate,
		task.ReminderAt, pq.Array(task.Tags), task.RecurrenceRule, task.UpdatedAt,
		task.ID, task.UserID,
	)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) Delete(ctx context.Context, id int64, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrTaskNotFound
	}
	return nil
}

func (r *taskRepository) ListDueBetween(ctx context.Context, start, end time.Time) ([]models.Task, error) {
	q := `SELECT ` + taskColumns + `
FROM tasks
WHERE due_date IS NOT NULL
  AND due_date >= $1
  AND due_date < $2
  AND completed = FALSE
ORDER BY due_date ASC`
	rows, err := r.db.QueryContext(ctx, q, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}
