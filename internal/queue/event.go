// Package queue defines message payloads exchanged over the message broker.
package queue

// NotificationEvent is published for every message the arbitrator wants
// delivered to a requester.  The mail collaborator consumes it and renders
// the actual email; Payload carries the kind specific fields (code,
// expires_in, token, session_id, reason, position, estimated_wait).
type NotificationEvent struct {
    ID        string            `json:"id"`
    Kind      string            `json:"kind"`
    Recipient string            `json:"recipient"`
    Payload   map[string]string `json:"payload,omitempty"`
    CreatedAt string            `json:"created_at"`
}

var secretFields = map[string]bool{
    "code":  true,
    "token": true,
}

// SecretField reports whether the payload field k must be redacted
// everywhere except in the mail itself.
func SecretField(k string) bool { return secretFields[k] }
