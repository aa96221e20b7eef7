package model

import "time"

const (
	AuditLogin           = "auth.login"
	AuditPasswordChanged = "user.password_changed"
	AuditUserCreated     = "user.created"
	AuditUserUpdated     = "user.updated"
	AuditControllerSeed  = "user.controller_seeded"

	AuditStatusSuccess = "success"
	AuditStatusFailure = "failure"
)

type AuditActor struct {
	UserID   int64  `json:"userId,omitempty"`
	Username string `json:"username,omitempty"`
	Role     Role   `json:"role,omitempty"`
	IP       string `json:"ip,omitempty"`
}

type AuditEntry struct {
	ID         int64      `json:"id"`
	Action     string     `json:"action"`
	OccurredAt time.Time  `json:"occurredAt"`
	Actor      AuditActor `json:"actor"`
	Status     string     `json:"status"`
	Resource   string     `json:"resource,omitempty"`
	Detail     string     `json:"detail,omitempty"`
}

type AuditQuery struct {
	Action  string
	Status  string
	ActorID int64
	Page    int
	Limit   int
}
