package db

import (
	"context"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gotoplanb/todo-otel/models"
)

// MemoryTodoRepository keeps todos in a map. It emits the same spans as
// TodoRepository so tests can assert trace shape without a database file.
type MemoryTodoRepository struct {
	mutex sync.RWMutex
	todos map[string]models.Todo
}

func NewMemoryTodoRepository() *MemoryTodoRepository {
	return &MemoryTodoRepository{todos: make(map[string]models.Todo)}
}

func (r *MemoryTodoRepository) Create(ctx context.Context, todo *models.Todo) error {
	ctx, span := tracer.Start(ctx, "database.INSERT", trace.WithAttributes(
		attribute.String("todo.id", todo.ID.String()),
		attribute.String("todo.title", todo.Title),
	))
	defer span.End()

	simulateLatency(ctx)

	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.todos[todo.ID.String()] = *todo
	return nil
}

func (r *MemoryTodoRepository) GetByID(ctx context.Context, id string) (*models.Todo, error) {
	ctx, span := tracer.Start(ctx, "database.SELECT", trace.WithAttributes(
		attribute.String("todo.id", id),
	))
	defer span.End()

	simulateLatency(ctx)

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	todo, ok := r.todos[id]
	if !ok {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, "todo not found")
		return nil, ErrTodoNotFound
	}
	return &todo, nil
}

func (r *MemoryTodoRepository) List(ctx context.Context) ([]*models.Todo, error) {
	ctx, span := tracer.Start(ctx, "database.SELECT_ALL")
	defer span.End()

	simulateLatency(ctx)

	r.mutex.RLock()
	defer r.mutex.RUnlock()
	todos := make([]*models.Todo, 0, len(r.todos))
	for _, todo := range r.todos {
		t := todo
		todos = append(todos, &t)
	}
	sort.Slice(todos, func(i, j int) bool {
		return todos[i].CreatedAt.After(todos[j].CreatedAt)
	})
	span.SetAttributes(attribute.Int("result.count", len(todos)))
	return todos, nil
}

func (r *MemoryTodoRepository) Update(ctx context.Context, todo *models.Todo) error {
	ctx, span := tracer.Start(ctx, "database.UPDATE", trace.WithAttributes(
		attribute.String("todo.id", todo.ID.String()),
	))
	defer span.End()

	simulateLatency(ctx)

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.todos[todo.ID.String()]; !ok {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, "todo not found")
		return ErrTodoNotFound
	}
	r.todos[todo.ID.String()] = *todo
	return nil
}

func (r *MemoryTodoRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "database.DELETE", trace.WithAttributes(
		attribute.String("todo.id", id),
	))
	defer span.End()

	simulateLatency(ctx)

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.todos[id]; !ok {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, "todo not found")
		return ErrTodoNotFound
	}
	delete(r.todos, id)
	return nil
}

func (r *MemoryTodoRepository) CreateBatch(ctx context.Context, todos []*models.Todo) error {
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

func (r *MemoryTodoRepository) DeleteCompleted(ctx context.Context) (int64, error) {
	ctx, span := tracer.Start(ctx, "database.DELETE_COMPLETED")
	defer span.End()

	simulateLatency(ctx)

	r.mutex.Lock()
	defer r.mutex.Unlock()
	var deleted int64
	for id, todo := range r.todos {
		if todo.Completed {
			delete(r.todos, id)
			deleted++
		}
	}
	span.SetAttributes(attribute.Int64("deleted.count", deleted))
	return deleted, nil
}
