package entities

import (
	"encoding/json"
	"time"
)

// AuditAction is the kind of admin action being recorded
type AuditAction string

const (
	AuditActionCreate  AuditAction = "create"
	AuditActionUpdate  AuditAction = "update"
	AuditActionDelete  AuditAction = "delete"
	AuditActionApprove AuditAction = "approve"
	AuditActionReject  AuditAction = "reject"
	AuditActionImport  AuditAction = "import"
)

// Audit target types
const (
	AuditTargetFacility        = "facility"
	AuditTargetRecommendation  = "recommendation"
	AuditTargetFacilityRequest = "facility_request"
)

// AuditLog is an append-only record of one admin action
type AuditLog struct {
	ID         string          `json:"id" db:"id"`
	Action     AuditAction     `json:"action" db:"action"`
	TargetType string          `json:"target_type" db:"target_type"`
	TargetID   string          `json:"target_id" db:"target_id"`
	Details    json.RawMessage `json:"details,omitempty" db:"details"`
	AdminID    string          `json:"admin_id" db:"admin_id"`
	CreatedAt  time.Time       `json:"created_at" db:"created_at"`
}
