// Package queue defines message payloads exchanged over the message broker.
package queue

// ClaimSubmittedEvent is published once a claim has been validated, its
// evidence uploaded and the record persisted.  It carries enough information
// for downstream consumers (reviewer notification, analytics) without
// querying the primary database.
type ClaimSubmittedEvent struct {
	ClaimRef     string  `json:"claim_ref"`
	UserID       uint64  `json:"user_id"`
	ClaimType    string  `json:"claim_type"`
	CropType     string  `json:"crop_type"`
	AreaAffected float64 `json:"area_affected"`
	PhotoCount   int     `json:"photo_count"`
	SubmittedAt  string  `json:"submitted_at"`
}
