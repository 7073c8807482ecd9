package model

import "github.com/google/uuid"

// Actor is the authenticated staff member performing an operation. It is
// extracted from the bearer token by the auth middleware and consumed for
// audit attribution and the per-stage "recorded by" fields.
type Actor struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Email string    `json:"email"`
}
