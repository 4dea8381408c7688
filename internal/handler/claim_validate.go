package handler

import (
	"fmt"
	"mime/multipart"
	"strconv"
	"strings"

	"github.com/agritrust/connect-api/internal/model"
)

// Claim intake policy.
const (
	minPhotoCount     = 1
	maxPhotoCount     = 10
	maxPhotoBytes     = 5 << 20 // 5MB per evidence image
	minDescriptionLen = 10
	maxDescriptionLen = 500
)

// allowedPhotoTypes is the canonical evidence file policy: the strict
// jpeg/png/webp set, not the looser image/* prefix match.
var allowedPhotoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// claimInput is the validated, typed form of a claim submission.
type claimInput struct {
	ClaimType    model.ClaimType
	CropType     model.CropType
	AreaAffected float64
	Description  string
	Location     *model.GeoPoint
}

// validateClaimSubmission checks every structural rule and the per-file
// policy, collecting all violations rather than stopping at the first, so a
// single round-trip tells the caller everything that is wrong.
func validateClaimSubmission(claimType, cropType, area, description, lat, lng string, photos []*multipart.FileHeader) (claimInput, []FieldError) {
	var (
		in   claimInput
		errs []FieldError
	)

	in.ClaimType = model.ClaimType(strings.TrimSpace(claimType))
	if !in.ClaimType.Valid() {
		errs = append(errs, FieldError{Field: "claimType", Message: "unknown claim type"})
	}
	in.CropType = model.CropType(strings.TrimSpace(cropType))
	if !in.CropType.Valid() {
		errs = append(errs, FieldError{Field: "cropType", Message: "unknown crop type"})
	}

	if a, err := strconv.ParseFloat(strings.TrimSpace(area), 64); err != nil || a <= 0 {
		errs = append(errs, FieldError{Field: "areaAffected", Message: "must be a number greater than zero"})
	} else {
		in.AreaAffected = a
	}

	in.Description = strings.TrimSpace(description)
	if n := len(in.Description); n < minDescriptionLen || n > maxDescriptionLen {
		errs = append(errs, FieldError{
			Field:   "description",
			Message: fmt.Sprintf("must be between %d and %d characters", minDescriptionLen, maxDescriptionLen),
		})
	}

	if n := len(photos); n < minPhotoCount || n > maxPhotoCount {
		errs = append(errs, FieldError{
			Field:   "photos",
			Message: fmt.Sprintf("between %d and %d evidence photos are required", minPhotoCount, maxPhotoCount),
		})
	}
	for i, fh := range photos {
		field := fmt.Sprintf("photos[%d]", i)
		if fh.Size > maxPhotoBytes {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("%s exceeds the 5MB limit", fh.Filename)})
		}
		if ct := fh.Header.Get("Content-Type"); !allowedPhotoTypes[ct] {
			errs = append(errs, FieldError{Field: field, Message: fmt.Sprintf("%s must be a jpeg, png or webp image", fh.Filename)})
		}
	}

	lat, lng = strings.TrimSpace(lat), strings.TrimSpace(lng)
	switch {
	case lat == "" && lng == "":
		// location is optional
	case lat == "" || lng == "":
		errs = append(errs, FieldError{Field: "location", Message: "latitude and longitude must be provided together"})
	default:
		la, errLa := strconv.ParseFloat(lat, 64)
		ln, errLn := strconv.ParseFloat(lng, 64)
		if errLa != nil || la < -90 || la > 90 {
			errs = append(errs, FieldError{Field: "latitude", Message: "must be between -90 and 90"})
		}
		if errLn != nil || ln < -180 || ln > 180 {
			errs = append(errs, FieldError{Field: "longitude", Message: "must be between -180 and 180"})
		}
		if errLa == nil && errLn == nil && la >= -90 && la <= 90 && ln >= -180 && ln <= 180 {
			in.Location = &model.GeoPoint{Latitude: la, Longitude: ln}
		}
	}

	return in, errs
}
