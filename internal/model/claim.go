package model

import "time"

// ClaimType enumerates the accepted loss categories.
type ClaimType string

const (
	ClaimCropDamage  ClaimType = "Crop Damage"
	ClaimWeatherLoss ClaimType = "Weather Loss"
	ClaimPestDamage  ClaimType = "Pest Damage"
	ClaimDisease     ClaimType = "Disease"
	ClaimFire        ClaimType = "Fire"
	ClaimFlood       ClaimType = "Flood"
	ClaimOther       ClaimType = "Other"
)

// Valid reports whether the claim type is one of the fixed members.
func (t ClaimType) Valid() bool {
	switch t {
	case ClaimCropDamage, ClaimWeatherLoss, ClaimPestDamage, ClaimDisease, ClaimFire, ClaimFlood, ClaimOther:
		return true
	}
	return false
}

// CropType enumerates the crops a claim may reference.
type CropType string

const (
	CropRice       CropType = "Rice"
	CropWheat      CropType = "Wheat"
	CropMaize      CropType = "Maize"
	CropCotton     CropType = "Cotton"
	CropSugarcane  CropType = "Sugarcane"
	CropVegetables CropType = "Vegetables"
	CropFruits     CropType = "Fruits"
	CropOther      CropType = "Other"
)

// Valid reports whether the crop type is one of the fixed members.
func (t CropType) Valid() bool {
	switch t {
	case CropRice, CropWheat, CropMaize, CropCotton, CropSugarcane, CropVegetables, CropFruits, CropOther:
		return true
	}
	return false
}

// ClaimStatus is the review state of a submitted claim.
type ClaimStatus string

const (
	StatusPending     ClaimStatus = "Pending"
	StatusUnderReview ClaimStatus = "Under Review"
	StatusApproved    ClaimStatus = "Approved"
	StatusRejected    ClaimStatus = "Rejected"
)

// Valid reports whether the status is one of the fixed members.
func (s ClaimStatus) Valid() bool {
	switch s {
	case StatusPending, StatusUnderReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// CanTransitionTo reports whether a reviewer may move a claim from s to next.
// Approved and Rejected are terminal; Pending and Under Review may move to
// any other state.
func (s ClaimStatus) CanTransitionTo(next ClaimStatus) bool {
	if !next.Valid() {
		return false
	}
	switch s {
	case StatusApproved, StatusRejected:
		return false
	}
	return next != s
}

// GeoPoint is an optional claim location.  Latitude must lie in [-90, 90]
// and longitude in [-180, 180].
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Claim mirrors the `claims` table.  Reference is a UUID used in URLs and
// API responses; the numeric ID stays internal.  PhotoURLs preserves the
// submission order of the uploaded evidence files.
type Claim struct {
	ID            uint64      `json:"-"`
	Reference     string      `json:"id"`
	UserID        uint64      `json:"userId"`
	ClaimType     ClaimType   `json:"claimType"`
	CropType      CropType    `json:"cropType"`
	AreaAffected  float64     `json:"areaAffected"`
	Description   string      `json:"description"`
	PhotoURLs     []string    `json:"photoUrls"`
	Location      *GeoPoint   `json:"location,omitempty"`
	Status        ClaimStatus `json:"status"`
	ReviewerNotes string      `json:"reviewerNotes,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
}
