package auth

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/missioncare/intake-api/internal/model"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewJWTService("test-secret")
	actor := &model.Actor{ID: uuid.New(), Name: "Nurse Ana", Email: "ana@example.org"}

	token, err := svc.GenerateToken(actor, time.Hour)
	require.NoError(t, err)

	parsed, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, actor.ID, parsed.ID)
	assert.Equal(t, actor.Name, parsed.Name)
	assert.Equal(t, actor.Email, parsed.Email)
}

func TestValidateTokenRejectsExpired(t *testing.T) {
	svc := NewJWTService("test-secret")
	actor := &model.Actor{ID: uuid.New()}

	token, err := svc.GenerateToken(actor, -time.Minute)
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	actor := &model.Actor{ID: uuid.New()}

	token, err := NewJWTService("secret-a").GenerateToken(actor, time.Hour)
	require.NoError(t, err)

	_, err = NewJWTService("secret-b").ValidateToken(token)
	require.Error(t, err)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := NewJWTService("test-secret").ValidateToken("not-a-token")
	require.Error(t, err)
}
