package model

import "time"

// Outcome of a verification attempt.
type Outcome string

const (
	OutcomeMatch   Outcome = "match"
	OutcomeNoMatch Outcome = "no_match"
	OutcomeError   Outcome = "error"
)

// ReferenceKind tells what the submitted photo was compared against.
type ReferenceKind string

const (
	ReferenceImage   ReferenceKind = "image"
	ReferenceToken   ReferenceKind = "token"
	ReferenceStored  ReferenceKind = "stored"
	ReferenceNIDCard ReferenceKind = "nid_card"
)

// VerificationRecord is the audit entry written for every verification
// call. Records are inserted once and never updated.
type VerificationRecord struct {
	ID             string        `json:"id" bson:"_id"`
	UserID         string        `json:"user_id" bson:"user_id"`
	ReferenceKind  ReferenceKind `json:"reference_kind" bson:"reference_kind"`
	ReferenceToken string        `json:"reference_token,omitempty" bson:"reference_token,omitempty"`
	Match          bool          `json:"match" bson:"match"`
	Confidence     float64       `json:"confidence" bson:"confidence"`
	Threshold      float64       `json:"threshold" bson:"threshold"`
	Outcome        Outcome       `json:"outcome" bson:"outcome"`
	Message        string        `json:"message" bson:"message"`
	RequestID      string        `json:"request_id,omitempty" bson:"request_id,omitempty"`
	CreatedAt      time.Time     `json:"created_at" bson:"created_at"`
}

// FaceReference is the enrolled reference face of a user. The normalised
// image is kept because Face++ face tokens expire after 72 hours.
type FaceReference struct {
	UserID    string    `json:"user_id" bson:"_id"`
	FaceToken string    `json:"face_token" bson:"face_token"`
	Image     []byte    `json:"-" bson:"image"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// VerificationResponse is returned by POST /face-verification.
type VerificationResponse struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	Threshold  float64 `json:"threshold"`
	Message    string  `json:"message"`
	RecordID   string  `json:"record_id"`
}

// VerificationHistory is returned by GET /verification/{user_id}.
type VerificationHistory struct {
	UserID  string                `json:"user_id"`
	Records []*VerificationRecord `json:"records"`
}

// EnrollResponse is returned by POST /face-verification/reference.
type EnrollResponse struct {
	UserID    string `json:"user_id"`
	FaceToken string `json:"face_token"`
}
