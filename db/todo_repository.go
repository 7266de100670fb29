package db

import (
	"context"
	"database/sql"
	"errors"
	"math/rand"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gotoplanb/todo-otel/models"
)

var ErrTodoNotFound = errors.New("todo not found")

var tracer = otel.Tracer("todo-api/db")

// defines methods for todo db operations
type TodoRepositoryInterface interface {
	Create(ctx context.Context, todo *models.Todo) error
	GetByID(ctx context.Context, id string) (*models.Todo, error)
	List(ctx context.Context) ([]*models.Todo, error)
	Update(ctx context.Context, todo *models.Todo) error
	Delete(ctx context.Context, id string) error
	CreateBatch(ctx context.Context, todos []*models.Todo) error
	DeleteCompleted(ctx context.Context) (int64, error)
}

type TodoRepository struct {
	db *sql.DB
}

func NewTodoRepository(db *sql.DB) *TodoRepository {
	return &TodoRepository{db: db}
}

// simulateLatency sleeps 10-60ms in its own span so database spans have a
// visible child in the trace view.
func simulateLatency(ctx context.Context) {
	_, span := tracer.Start(ctx, "simulate_latency")
	defer span.End()

	delay := time.Duration(10+rand.Intn(50)) * time.Millisecond
	time.Sleep(delay)
	span.SetAttributes(attribute.Int64("delay_ms", delay.Milliseconds()))
}

func (r *TodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	ctx, span := tracer.Start(ctx, "database.INSERT", trace.WithAttributes(
		attribute.String("todo.id", todo.ID.String()),
		attribute.String("todo.title", todo.Title),
	))
	defer span.End()

	simulateLatency(ctx)

	query := `INSERT INTO todos (id, title, description, completed, created_at, updated_at)
	 VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.ExecContext(
		ctx, query, todo.ID, todo.Title, todo.Description, todo.Completed,
		todo.CreatedAt, todo.UpdatedAt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "insert failed")
	}
	return err
}

func (r *TodoRepository) GetByID(ctx context.Context, id string) (*models.Todo, error) {
	ctx, span := tracer.Start(ctx, "database.SELECT", trace.WithAttributes(
		attribute.String("todo.id", id),
	))
	defer span.End()

	simulateLatency(ctx)

	query := `SELECT id, title, description, completed, created_at, updated_at
	 FROM todos WHERE id = $1`
	todo := &models.Todo{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&todo.ID, &todo.Title, &todo.Description, &todo.Completed,
		&todo.CreatedAt, &todo.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, "todo not found")
		return nil, ErrTodoNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	return todo, nil
}

func (r *TodoRepository) List(ctx context.Context) ([]*models.Todo, error) {
	ctx, span := tracer.Start(ctx, "database.SELECT_ALL")
	defer span.End()

	simulateLatency(ctx)

	query := `SELECT id, title, description, completed, created_at, updated_at
	 FROM todos ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "select failed")
		return nil, err
	}
	defer rows.Close()

	var todos []*models.Todo
	for rows.Next() {
		todo := &models.Todo{}
		if err := rows.Scan(
			&todo.ID, &todo.Title, &todo.Description, &todo.Completed,
			&todo.CreatedAt, &todo.UpdatedAt,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "scan failed")
			return nil, err
		}
		todos = append(todos, todo)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rows failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("result.count", len(todos)))
	return todos, nil
}

func (r *TodoRepository) Update(ctx context.Context, todo *models.Todo) error {
	ctx, span := tracer.Start(ctx, "database.UPDATE", trace.WithAttributes(
		attribute.String("todo.id", todo.ID.String()),
	))
	defer span.End()

	simulateLatency(ctx)

	query := `UPDATE todos SET title = $1, description = $2, completed = $3, updated_at = $4
	 WHERE id = $5`
	res, err := r.db.ExecContext(
		ctx, query, todo.Title, todo.Description, todo.Completed, todo.UpdatedAt, todo.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, "todo not found")
		return ErrTodoNotFound
	}
	return nil
}

func (r *TodoRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "database.DELETE", trace.WithAttributes(
		attribute.String("todo.id", id),
	))
	defer span.End()

	simulateLatency(ctx)

	query := `DELETE FROM todos WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, "todo not found")
		return ErrTodoNotFound
	}
	return nil
}

// CreateBatch inserts todos one by one, each inside its own batch_item
// span, so every item shows up as a separate subtree of the caller.
// Items are processed sequentially; the first failure aborts the batch.
func (r *TodoRepository) CreateBatch(ctx context.Context, todos []*models.Todo) error {
	for i, todo := range todos {
		itemCtx, span := tracer.Start(ctx, "batch_item", trace.WithAttributes(
			attribute.Int("batch.index", i),
			attribute.String("todo.id", todo.ID.String()),
		))
		err := r.Create(itemCtx, todo)
		span.End()
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *TodoRepository) DeleteCompleted(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "database.DELETE_COMPLETED")
	defer span.End()

	simulateLatency(ctx)

	query := `DELETE FROM todos WHERE completed = TRUE`
	res, err := r.db.ExecContext(ctx, query)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		return 0, err
	}
	deleted, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	span.SetAttributes(attribute.Int64("deleted.count", deleted))
	return deleted, nil
}
