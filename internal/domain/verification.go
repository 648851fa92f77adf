package domain

import "time"

// Flow names an independent verification flow. A challenge is keyed by (Flow, Subject).
type Flow string

const (
	FlowSignup        Flow = "signup"
	FlowPasswordReset Flow = "password_reset"
	FlowResetGrant    Flow = "reset_grant"
	FlowEmailChange   Flow = "email_change"
)

// Stage is the position of a multi-step flow. Single-step flows leave it empty.
type Stage string

const (
	StageNone                Stage = ""
	StageAwaitingCurrentCode Stage = "awaiting_current_code"
	StageAwaitingNewEmail    Stage = "awaiting_new_email"
	StageAwaitingNewCode     Stage = "awaiting_new_code"
)

// ChallengePayload carries flow-specific data between the send and verify steps.
type ChallengePayload struct {
	Username     string `json:"username,omitempty" dynamodbav:"username,omitempty"`
	PasswordHash string `json:"password_hash,omitempty" dynamodbav:"password_hash,omitempty"`
	NewEmail     string `json:"new_email,omitempty" dynamodbav:"new_email,omitempty"`
}

// Challenge is a transient verification session.
// PK: subject, SK: flow. PurgeAt is a Unix timestamp used as the backend TTL.
type Challenge struct {
	Subject   string           `json:"subject" dynamodbav:"subject"`
	Flow      Flow             `json:"flow" dynamodbav:"flow"`
	Code      string           `json:"code" dynamodbav:"code"`
	ExpiresAt time.Time        `json:"expires_at" dynamodbav:"expires_at"`
	Stage     Stage            `json:"stage,omitempty" dynamodbav:"stage,omitempty"`
	Payload   ChallengePayload `json:"payload" dynamodbav:"payload"`
	Attempts  int              `json:"attempts" dynamodbav:"attempts"`
	PurgeAt   int64            `json:"purge_at" dynamodbav:"purge_at"`
}

// Expired reports whether the challenge can no longer be matched at now.
func (c *Challenge) Expired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

// AccountEvent is published after a committed account state change.
type AccountEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

const (
	EventAccountCreated = "account_created"
	EventPasswordReset  = "password_reset"
	EventEmailChanged   = "email_changed"
	EventAccountDeleted = "account_deleted"
)
