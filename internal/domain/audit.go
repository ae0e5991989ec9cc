package domain

import "time"

type AuditCategory string

const (
	AuditLoginSuccess    AuditCategory = "LOGIN_SUCCESS"
	AuditLoginFailed     AuditCategory = "LOGIN_FAILED"
	AuditLockout         AuditCategory = "LOCKOUT"
	AuditLockoutCleared  AuditCategory = "LOCKOUT_CLEARED"
	AuditRateLimited     AuditCategory = "RATE_LIMITED"
	AuditTokenRejected   AuditCategory = "TOKEN_REJECTED"
	AuditRegistered      AuditCategory = "REGISTERED"
	AuditPasswordChanged AuditCategory = "PASSWORD_CHANGED"
	AuditAccessDenied    AuditCategory = "ACCESS_DENIED"
)

const AuditSubjectUnknown = "unknown"

type AuditEvent struct {
	ID        string
	Timestamp time.Time
	Category  AuditCategory
	Subject   string
	ClientIP  string
	Detail    string
}
