package repository

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/agritrust/connect-api/internal/model"
)

// ClaimRepo persists claim records.  Photo URLs are stored as a JSON array
// column so the submission order survives the round-trip.
type ClaimRepo struct{ DB *sql.DB }

func NewClaimRepo(db *sql.DB) *ClaimRepo { return &ClaimRepo{DB: db} }

const claimCols = "id, reference, user_id, claim_type, crop_type, area_affected, description, " +
	"photo_urls, latitude, longitude, status, reviewer_notes, created_at, updated_at"

// Create inserts a claim and fills in its generated numeric ID.
func (r *ClaimRepo) Create(ctx context.Context, c *model.Claim) error {
	photos, err := json.Marshal(c.PhotoURLs)
	if err != nil {
		return err
	}
	var lat, lng any
	if c.Location != nil {
		lat, lng = c.Location.Latitude, c.Location.Longitude
	}
	res, err := r.DB.ExecContext(ctx,
		`INSERT INTO claims
		   (reference, user_id, claim_type, crop_type, area_affected, description,
		    photo_urls, latitude, longitude, status)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		c.Reference, c.UserID, string(c.ClaimType), string(c.CropType), c.AreaAffected,
		c.Description, photos, lat, lng, string(c.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.ID = uint64(id)
	return nil
}

// GetByReference fetches a claim by its public UUID.
func (r *ClaimRepo) GetByReference(ctx context.Context, ref string) (model.Claim, error) {
	row := r.DB.QueryRowContext(ctx,
		"SELECT "+claimCols+" FROM claims WHERE reference=? LIMIT 1", ref)
	return scanClaim(row)
}

// ListByUser returns the caller's claims, newest first.
func (r *ClaimRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Claim, error) {
	rows, err := r.DB.QueryContext(ctx,
		"SELECT "+claimCols+" FROM claims WHERE user_id=? ORDER BY id DESC", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpdateStatus moves a claim from one review status to another.  The WHERE
// clause pins the expected current status, so a racing reviewer loses with
// ErrConflict instead of silently overwriting.
func (r *ClaimRepo) UpdateStatus(ctx context.Context, ref string, from, to model.ClaimStatus, notes string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE claims SET status=?, reviewer_notes=? WHERE reference=? AND status=?",
		string(to), notes, ref, string(from))
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrConflict
	}
	return nil
}

type rowScanner interface{ Scan(dest ...any) error }

func scanClaim(row rowScanner) (model.Claim, error) {
	var (
		c         model.Claim
		claimType string
		cropType  string
		status    string
		photos    []byte
		lat, lng  sql.NullFloat64
		notes     sql.NullString
	)
	err := row.Scan(&c.ID, &c.Reference, &c.UserID, &claimType, &cropType, &c.AreaAffected,
		&c.Description, &photos, &lat, &lng, &status, &notes, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return model.Claim{}, ErrNotFound
	}
	if err != nil {
		return model.Claim{}, err
	}
	c.ClaimType = model.ClaimType(claimType)
	c.CropType = model.CropType(cropType)
	c.Status = model.ClaimStatus(status)
	if err := json.Unmarshal(photos, &c.PhotoURLs); err != nil {
		return model.Claim{}, err
	}
	if lat.Valid && lng.Valid {
		c.Location = &model.GeoPoint{Latitude: lat.Float64, Longitude: lng.Float64}
	}
	if notes.Valid {
		c.ReviewerNotes = notes.String
	}
	return c, nil
}
