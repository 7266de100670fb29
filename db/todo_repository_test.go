package db

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/gotoplanb/todo-otel/models"
)

func setupTodosDB(t *testing.T) *sql.DB {
	t.Helper()
	dbx, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := Migrate(dbx); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	return dbx
}

func newTodo(title string, completed bool) *models.Todo {
	now := time.Now().UTC()
	return &models.Todo{
		ID:          uuid.New(),
		Title:       title,
		Description: "desc",
		Completed:   completed,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestTodoRepository_Create_Get_Update_Delete(t *testing.T) {
	dbx := setupTodosDB(t)
	defer dbx.Close()
	repo := NewTodoRepository(dbx)
	ctx := context.Background()

	todo := newTodo("Write report", false)
	if err := repo.Create(ctx, todo); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := repo.GetByID(ctx, todo.ID.String())
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != todo.ID || got.Title != "Write report" || got.Description != "desc" || got.Completed {
		t.Fatalf("unexpected todo: %+v", got)
	}
	if !got.CreatedAt.Equal(got.UpdatedAt) {
		t.Fatalf("created_at %v != updated_at %v on fresh todo", got.CreatedAt, got.UpdatedAt)
	}

	got.Completed = true
	got.UpdatedAt = time.Now().UTC().Add(time.Second)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	updated, err := repo.GetByID(ctx, todo.ID.String())
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if !updated.Completed {
		t.Fatalf("completed not persisted: %+v", updated)
	}
	if !updated.UpdatedAt.After(updated.CreatedAt) {
		t.Fatalf("updated_at %v did not advance past created_at %v", updated.UpdatedAt, updated.CreatedAt)
	}

	if err := repo.Delete(ctx, todo.ID.String()); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, todo.ID.String()); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("expected ErrTodoNotFound after delete, got %v", err)
	}
}

func TestTodoRepository_NotFoundCases(t *testing.T) {
	dbx := setupTodosDB(t)
	defer dbx.Close()
	repo := NewTodoRepository(dbx)
	ctx := context.Background()

	missing := uuid.New().String()
	if _, err := repo.GetByID(ctx, missing); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("get missing: expected ErrTodoNotFound, got %v", err)
	}
	if err := repo.Update(ctx, newTodo("ghost", false)); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("update missing: expected ErrTodoNotFound, got %v", err)
	}
	if err := repo.Delete(ctx, missing); !errors.Is(err, ErrTodoNotFound) {
		t.Fatalf("delete missing: expected ErrTodoNotFound, got %v", err)
	}
}

func TestTodoRepository_List_NewestFirst(t *testing.T) {
	dbx := setupTodosDB(t)
	defer dbx.Close()
	repo := NewTodoRepository(dbx)
	ctx := context.Background()

	older := newTodo("older", false)
	older.CreatedAt = time.Now().UTC().Add(-time.Hour)
	older.UpdatedAt = older.CreatedAt
	newer := newTodo("newer", false)
	for _, todo := range []*models.Todo{older, newer} {
		if err := repo.Create(ctx, todo); err != nil {
			t.Fatalf("create %q: %v", todo.Title, err)
		}
	}

	todos, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(todos) != 2 {
		t.Fatalf("expected 2 todos, got %d", len(todos))
	}
	if todos[0].Title != "newer" || todos[1].Title != "older" {
		t.Fatalf("wrong order: %q, %q", todos[0].Title, todos[1].Title)
	}
}

func TestTodoRepository_CreateBatch(t *testing.T) {
	dbx := setupTodosDB(t)
	defer dbx.Close()
	repo := NewTodoRepository(dbx)
	ctx := context.Background()

	batch := []*models.Todo{newTodo("a", false), newTodo("b", false), newTodo("c", false)}
	if err := repo.CreateBatch(ctx, batch); err != nil {
		t.Fatalf("create batch: %v", err)
	}

	todos, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(todos) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(todos))
	}
	seen := map[uuid.UUID]bool{}
	for _, todo := range todos {
		if seen[todo.ID] {
			t.Fatalf("duplicate id %s", todo.ID)
		}
		seen[todo.ID] = true
	}
}

func TestTodoRepository_DeleteCompleted(t *testing.T) {
	dbx := setupTodosDB(t)
	defer dbx.Close()
	repo := NewTodoRepository(dbx)
	ctx := context.Background()

	for _, todo := range []*models.Todo{
		newTodo("done 1", true),
		newTodo("done 2", true),
		newTodo("pending", false),
	} {
		if err := repo.Create(ctx, todo); err != nil {
			t.Fatalf("create %q: %v", todo.Title, err)
		}
	}

	deleted, err := repo.DeleteCompleted(ctx)
	if err != nil {
		t.Fatalf("delete completed: %v", err)
	}
	if deleted != 2 {
		t.Fatalf("expected 2 deleted, got %d", deleted)
	}

	todos, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(todos) != 1 || todos[0].Title != "pending" {
		t.Fatalf("pending todo should survive, got %+v", todos)
	}

	// nothing left to delete, zero is not an error
	deleted, err = repo.DeleteCompleted(ctx)
	if err != nil || deleted != 0 {
		t.Fatalf("second pass: deleted=%d err=%v", deleted, err)
	}
}
