// Package signup implements the pre-signup deduplication gate. It is invoked
// by the identity provider exactly once per signup attempt, before the new
// account is committed; a Deny decision is a hard rejection.
package signup

import (
	"context"
	"time"

	"github.com/lockcase/backend/internal/errors"
	"github.com/lockcase/backend/internal/storage"
	"github.com/lockcase/backend/pkg/logger"
)

const lookupTimeout = 3 * time.Second

// Decision is the gate's verdict on a signup attempt.
type Decision struct {
	Allowed bool
	Reason  *errors.ServiceError // nil when allowed
}

// Allow is the permissive decision.
var Allow = Decision{Allowed: true}

// Deny wraps a classified rejection reason.
func Deny(reason *errors.ServiceError) Decision {
	return Decision{Reason: reason}
}

// Service checks signup attempts against the identity directory.
type Service struct {
	directory storage.IdentityDirectory
	log       *logger.Logger
}

// New constructs the gate over a directory lookup capability.
func New(directory storage.IdentityDirectory, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("signup")
	}
	return &Service{directory: directory, log: log}
}

// Register decides whether a signup with the candidate email may proceed.
// The directory lookup is an exact-match existence check; email comparison is
// case-sensitive. An unreachable directory denies the signup (fail-closed:
// inability to check for duplicates must not let one through).
func (s *Service) Register(ctx context.Context, candidateEmail, poolID string) Decision {
	if candidateEmail == "" {
		return Deny(errors.MissingParameter("email"))
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	defer cancel()

	exists, err := s.directory.EmailExists(lookupCtx, poolID, candidateEmail)
	if err != nil {
		s.log.WithError(err).WithField("pool_id", poolID).Warn("identity directory lookup failed")
		return Deny(errors.DownstreamFailure("identity directory lookup", err))
	}
	if exists {
		s.log.WithField("pool_id", poolID).Info("signup rejected: email already registered")
		return Deny(errors.DuplicateIdentity(candidateEmail))
	}
	return Allow
}
