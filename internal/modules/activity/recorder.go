package activity

import (
	"github.com/rs/zerolog"
)

// UsernameResolver looks up a username for audit records.
// Defined here to avoid an import cycle with the auth module.
type UsernameResolver interface {
	UsernameByID(userID string) (string, error)
}

// Recorder is the audit sink handed to the ledger service. Recording is
// best-effort: a failed append is logged, never propagated, so audit issues
// cannot fail a ledger operation.
type Recorder struct {
	repo  *Repository
	users UsernameResolver
	log   zerolog.Logger
}

// NewRecorder creates a new activity recorder
func NewRecorder(repo *Repository, users UsernameResolver, log zerolog.Logger) *Recorder {
	return &Recorder{
		repo:  repo,
		users: users,
		log:   log.With().Str("component", "activity_recorder").Logger(),
	}
}

// Record appends one audit event for the user.
func (r *Recorder) Record(userID, eventType, description string) {
	username, err := r.users.UsernameByID(userID)
	if err != nil {
		r.log.Warn().Err(err).Str("user_id", userID).Msg("Username lookup failed for audit record")
		username = "unknown"
	}

	if err := r.repo.Append(userID, username, eventType, description); err != nil {
		r.log.Error().Err(err).Str("event_type", eventType).Msg("Failed to record activity event")
	}
}
