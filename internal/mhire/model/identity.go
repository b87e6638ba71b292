package model

import "time"

// Duplicate check statuses.
const (
	DuplicateStatusFound      = "duplicate_found"
	DuplicateStatusRegistered = "success"
)

// FaceSet is a Face++ FaceSet the service registers faces in.
type FaceSet struct {
	OuterID   string    `json:"outer_id" bson:"_id"`
	FaceCount int       `json:"face_count" bson:"face_count"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	UpdatedAt time.Time `json:"updated_at" bson:"updated_at"`
}

// RegisteredFace is a face token added to a FaceSet.
type RegisteredFace struct {
	FaceToken string    `json:"face_token" bson:"_id"`
	FaceSetID string    `json:"faceset_id" bson:"faceset_id"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
}

// FaceMatch is a registered face similar to the submitted one.
type FaceMatch struct {
	FaceToken  string  `json:"face_token"`
	Confidence float64 `json:"confidence"`
}

// DuplicateCheckResponse is returned by POST /face-verification/duplicate.
type DuplicateCheckResponse struct {
	Status      string      `json:"status"`
	Message     string      `json:"message"`
	IsDuplicate bool        `json:"is_duplicate"`
	FaceToken   string      `json:"face_token"`
	Confidence  *float64    `json:"confidence,omitempty"`
	Matches     []FaceMatch `json:"matches,omitempty"`
	FaceSetID   string      `json:"faceset_id,omitempty"`
}

// DocumentCheck is the OCR check of an identity document.
type DocumentCheck struct {
	Valid           bool     `json:"is_valid_nid"`
	Confidence      float64  `json:"confidence"`
	IndicatorsFound int      `json:"indicators_found"`
	FoundIndicators []string `json:"found_indicators"`
	ExtractedText   string   `json:"extracted_text"`
	TextLength      int      `json:"total_text_length"`
}

// NIDVerificationResponse is returned by POST /nid-verification.
type NIDVerificationResponse struct {
	Match           bool           `json:"match"`
	Confidence      float64        `json:"confidence"`
	Threshold       float64        `json:"threshold"`
	Message         string         `json:"message"`
	FacesInCard     int            `json:"faces_in_nid_card"`
	UsedLargestFace bool           `json:"used_largest_nid_face"`
	Document        *DocumentCheck `json:"document"`
	RecordID        string         `json:"record_id,omitempty"`
}
