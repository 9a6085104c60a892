package models

import "time"

// Audit event target types.
const (
	TargetCall = "call"
	TargetUnit = "unit"
)

// AuditEvent holds the structure for the events collection in mongo.
// Events are append-only; the core reads them as a per-entity timeline.
type AuditEvent struct {
	ID      string            `json:"_id" bson:"_id"`
	Details AuditEventDetails `json:"event" bson:"event"`
}

// AuditEventDetails holds the structure for the inner event structure
// as defined in the events collection in mongo
type AuditEventDetails struct {
	Action     string            `json:"action" bson:"action"`
	TargetType string            `json:"targetType" bson:"targetType"`
	TargetID   string            `json:"targetID" bson:"targetID"`
	Metadata   map[string]string `json:"metadata,omitempty" bson:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"createdAt" bson:"createdAt"`
}
