package models

import (
	"time"

	"github.com/google/uuid"
)

type Todo struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CreateTodoRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
}

// Pointer fields so that absent keys can be told apart from zero values
// on partial updates.
type UpdateTodoRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

type BatchCreateRequest struct {
	Todos []CreateTodoRequest `json:"todos"`
}

type BatchCreateResponse struct {
	Created []*Todo  `json:"created"`
	Total   int      `json:"total"`
	Errors  []string `json:"errors"`
}

type DeleteCompletedResponse struct {
	DeletedCount int64 `json:"deleted_count"`
}

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}
