package signup

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	stderrors "github.com/lockcase/backend/internal/errors"
	"github.com/lockcase/backend/internal/storage/memory"
)

const testPool = "pool-1"

func TestRegisterAllowsNovelEmail(t *testing.T) {
	dir := memory.NewDirectory()
	dir.Add(testPool, "existing@example.com")
	svc := New(dir, nil)

	decision := svc.Register(context.Background(), "new@example.com", testPool)
	assert.True(t, decision.Allowed)
	assert.Nil(t, decision.Reason)
}

func TestRegisterDeniesDuplicateEmail(t *testing.T) {
	dir := memory.NewDirectory()
	dir.Add(testPool, "taken@example.com")
	svc := New(dir, nil)

	decision := svc.Register(context.Background(), "taken@example.com", testPool)
	require.False(t, decision.Allowed)
	require.NotNil(t, decision.Reason)
	assert.Equal(t, stderrors.CodeDuplicateIdentity, decision.Reason.Code)
}

func TestRegisterMatchIsCaseSensitive(t *testing.T) {
	dir := memory.NewDirectory()
	dir.Add(testPool, "Taken@Example.com")
	svc := New(dir, nil)

	decision := svc.Register(context.Background(), "taken@example.com", testPool)
	assert.True(t, decision.Allowed, "differently-cased email is a distinct identity")
}

func TestRegisterDeniesMissingEmail(t *testing.T) {
	svc := New(memory.NewDirectory(), nil)

	decision := svc.Register(context.Background(), "", testPool)
	require.False(t, decision.Allowed)
	assert.Equal(t, stderrors.CodeMissingParameter, decision.Reason.Code)
}

type brokenDirectory struct{}

func (brokenDirectory) EmailExists(context.Context, string, string) (bool, error) {
	return false, errors.New("directory unreachable")
}

// An unreachable directory must deny the signup rather than let a possible
// duplicate through.
func TestRegisterFailsClosed(t *testing.T) {
	svc := New(brokenDirectory{}, nil)

	decision := svc.Register(context.Background(), "someone@example.com", testPool)
	require.False(t, decision.Allowed)
	assert.Equal(t, stderrors.CodeDownstreamFailure, decision.Reason.Code)
}

func TestRegisterScopesLookupToPool(t *testing.T) {
	dir := memory.NewDirectory()
	dir.Add("other-pool", "taken@example.com")
	svc := New(dir, nil)

	decision := svc.Register(context.Background(), "taken@example.com", testPool)
	assert.True(t, decision.Allowed, "email registered in another pool does not collide")
}
