package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gotoplanb/todo-otel/db"
	"github.com/gotoplanb/todo-otel/models"
	"github.com/gotoplanb/todo-otel/tracing"
)

/*
handles routes:
- GET /todos - list todos
- POST /todos - create a new todo
*/
func (h *Handler) HandleTodos(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listTodos(w, r)
	case http.MethodPost:
		h.createTodo(w, r)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

/*
routes:
- GET/PUT/DELETE /todos/{id}
- POST /todos/batch
- DELETE /todos/completed
*/
func (h *Handler) HandleTodoByID(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/todos/")
	switch rest {
	case "":
		sendError(w, "todo id is required", http.StatusBadRequest)
		return
	case "batch":
		if r.Method != http.MethodPost {
			sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.createBatch(w, r)
		return
	case "completed":
		if r.Method != http.MethodDelete {
			sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h.deleteCompleted(w, r)
		return
	}

	todoID, err := uuid.Parse(rest)
	if err != nil {
		sendError(w, "todo id must be a valid uuid", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		h.getTodoByID(w, r, todoID)
	case http.MethodPut, http.MethodPatch:
		h.updateTodoByID(w, r, todoID)
	case http.MethodDelete:
		h.deleteTodoByID(w, r, todoID)
	default:
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// HandleHealth reports liveness plus database reachability, probed with
// the same SELECT_ALL the list endpoint uses.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	ctx, span := tracer.Start(r.Context(), "health_check")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	dbStatus := "connected"
	reachable := true
	if _, err := h.TodoRepo.List(ctx); err != nil {
		dbStatus = "disconnected"
		reachable = false
	}
	span.SetAttributes(attribute.Bool("db.reachable", reachable))

	sendJSON(w, http.StatusOK, models.HealthResponse{
		Status:   "healthy",
		Version:  tracing.Version,
		Database: dbStatus,
	})
}

func (h *Handler) listTodos(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "list_todos")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	todos, err := h.TodoRepo.List(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		sendError(w, "Failed to list todos", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.Int("result.count", len(todos)))

	if todos == nil {
		todos = []*models.Todo{}
	}
	sendJSON(w, http.StatusOK, todos)
}

func (h *Handler) createTodo(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "create_todo")
	defer span.End()

	var input models.CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		span.SetStatus(codes.Error, "invalid body")
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	input.Title = strings.TrimSpace(input.Title)
	if input.Title == "" {
		span.SetStatus(codes.Error, "missing title")
		sendError(w, "title is required", http.StatusBadRequest)
		return
	}

	now := time.Now().UTC()
	todo := &models.Todo{
		ID:          uuid.New(),
		Title:       input.Title,
		Description: input.Description,
		Completed:   false,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	span.SetAttributes(
		attribute.String("todo.id", todo.ID.String()),
		attribute.String("todo.title", todo.Title),
	)

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := h.TodoRepo.Create(ctx, todo); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create failed")
		sendError(w, "Failed to create todo", http.StatusInternalServerError)
		return
	}

	// runs before the response is written so the whole chain lands in one trace
	h.sendNotifications(ctx, todo)
	h.WSHub.Broadcast("todo_created", todo.ID, todo.Title, todo.Completed)

	w.Header().Set("Location", "/todos/"+todo.ID.String())
	sendJSON(w, http.StatusCreated, todo)
}

// sendNotifications fires the fake webhook/email chain. Failures are
// recorded on the span and never fail the request.
func (h *Handler) sendNotifications(ctx context.Context, todo *models.Todo) {
	ctx, span := tracer.Start(ctx, "send_notifications")
	defer span.End()

	if err := h.Notifier.SendCreatedNotification(ctx, todo.ID.String(), todo.Title); err != nil {
		log.Printf("Failed to send notification, continuing: %v", err)
		span.AddEvent("notification failed", trace.WithAttributes(
			attribute.String("error", err.Error())))
	}
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "create_batch")
	defer span.End()

	var input models.BatchCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		span.SetStatus(codes.Error, "invalid body")
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}
	if len(input.Todos) == 0 {
		span.SetStatus(codes.Error, "empty batch")
		sendError(w, "todos must not be empty", http.StatusBadRequest)
		return
	}
	span.SetAttributes(attribute.Int("batch.count", len(input.Todos)))

	now := time.Now().UTC()
	todos := make([]*models.Todo, 0, len(input.Todos))
	for _, item := range input.Todos {
		title := strings.TrimSpace(item.Title)
		if title == "" {
			span.SetStatus(codes.Error, "missing title")
			sendError(w, "every todo needs a title", http.StatusBadRequest)
			return
		}
		todos = append(todos, &models.Todo{
			ID:          uuid.New(),
			Title:       title,
			Description: item.Description,
			Completed:   false,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := h.TodoRepo.CreateBatch(ctx, todos); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch create failed")
		sendError(w, "Batch creation failed", http.StatusInternalServerError)
		return
	}

	if err := h.Notifier.SendBatchSummary(ctx, len(todos)); err != nil {
		log.Printf("Failed to send batch summary, continuing: %v", err)
		span.AddEvent("batch summary failed", trace.WithAttributes(
			attribute.String("error", err.Error())))
	}

	for _, todo := range todos {
		h.WSHub.Broadcast("todo_created", todo.ID, todo.Title, todo.Completed)
	}

	sendJSON(w, http.StatusCreated, models.BatchCreateResponse{
		Created: todos,
		Total:   len(todos),
		Errors:  []string{},
	})
}

func (h *Handler) getTodoByID(w http.ResponseWriter, r *http.Request, todoID uuid.UUID) {
	ctx, span := tracer.Start(r.Context(), "get_todo")
	defer span.End()
	span.SetAttributes(attribute.String("todo.id", todoID.String()))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	todo, err := h.TodoRepo.GetByID(ctx, todoID.String())
	if errors.Is(err, db.ErrTodoNotFound) {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, "todo not found")
		sendError(w, "Todo not found", http.StatusNotFound)
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		sendError(w, "Failed to retrieve todo", http.StatusInternalServerError)
		return
	}
	sendJSON(w, http.StatusOK, todo)
}

func (h *Handler) updateTodoByID(w http.ResponseWriter, r *http.Request, todoID uuid.UUID) {
	ctx, span := tracer.Start(r.Context(), "update_todo")
	defer span.End()
	span.SetAttributes(attribute.String("todo.id", todoID.String()))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	existing, err := h.TodoRepo.GetByID(ctx, todoID.String())
	if errors.Is(err, db.ErrTodoNotFound) {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, "todo not found")
		sendError(w, "Todo not found", http.StatusNotFound)
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "get failed")
		sendError(w, "Failed to update todo", http.StatusInternalServerError)
		return
	}

	var input models.UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		span.SetStatus(codes.Error, "invalid body")
		sendError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	wasCompleted := existing.Completed
	if input.Title != nil {
		title := strings.TrimSpace(*input.Title)
		if title == "" {
			sendError(w, "title cannot be empty", http.StatusBadRequest)
			return
		}
		existing.Title = title
	}
	if input.Description != nil {
		existing.Description = *input.Description
	}
	if input.Completed != nil {
		existing.Completed = *input.Completed
	}
	existing.UpdatedAt = time.Now().UTC()
	span.SetAttributes(
		attribute.String("todo.title", existing.Title),
		attribute.Bool("todo.completed", existing.Completed),
	)

	if err := h.TodoRepo.Update(ctx, existing); err != nil {
		if errors.Is(err, db.ErrTodoNotFound) {
			sendError(w, "Todo not found", http.StatusNotFound)
			return
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "update failed")
		sendError(w, "Failed to update todo", http.StatusInternalServerError)
		return
	}

	// analytics only when the todo flips to completed
	if !wasCompleted && existing.Completed {
		if err := h.Notifier.SendCompletedNotification(ctx, existing.ID.String(), existing.Title); err != nil {
			log.Printf("Failed to send completion notification, continuing: %v", err)
			span.AddEvent("completion notification failed", trace.WithAttributes(
				attribute.String("error", err.Error())))
		}
	}

	h.WSHub.Broadcast("todo_updated", existing.ID, existing.Title, existing.Completed)
	sendJSON(w, http.StatusOK, existing)
}

func (h *Handler) deleteTodoByID(w http.ResponseWriter, r *http.Request, todoID uuid.UUID) {
	ctx, span := tracer.Start(r.Context(), "delete_todo")
	defer span.End()
	span.SetAttributes(attribute.String("todo.id", todoID.String()))

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := h.TodoRepo.Delete(ctx, todoID.String())
	if errors.Is(err, db.ErrTodoNotFound) {
		span.SetAttributes(attribute.Bool("error", true))
		span.SetStatus(codes.Error, "todo not found")
		sendError(w, "Todo not found", http.StatusNotFound)
		return
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		sendError(w, "Failed to delete todo", http.StatusInternalServerError)
		return
	}

	h.WSHub.Broadcast("todo_deleted", todoID, "", false)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteCompleted(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracer.Start(r.Context(), "delete_completed")
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	deleted, err := h.TodoRepo.DeleteCompleted(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "delete failed")
		sendError(w, "Failed to delete completed todos", http.StatusInternalServerError)
		return
	}
	span.SetAttributes(attribute.Int64("deleted.count", deleted))

	sendJSON(w, http.StatusOK, models.DeleteCompletedResponse{DeletedCount: deleted})
}
