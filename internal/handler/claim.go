package handler

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/agritrust/connect-api/internal/config"
	"github.com/agritrust/connect-api/internal/middleware"
	"github.com/agritrust/connect-api/internal/model"
	"github.com/agritrust/connect-api/internal/queue"
	"github.com/agritrust/connect-api/internal/repository"
	qp "github.com/agritrust/connect-api/internal/service"
	"github.com/agritrust/connect-api/internal/storage"
)

// ClaimHandler implements the claim intake pipeline and the review
// endpoints.
type ClaimHandler struct {
	Cfg     config.Config
	Claims  ClaimStore
	Uploads storage.Uploader
}

func NewClaimHandler(cfg config.Config, claims ClaimStore, uploads storage.Uploader) *ClaimHandler {
	return &ClaimHandler{Cfg: cfg, Claims: claims, Uploads: uploads}
}

// Submit handles POST /claims/submit.  The pipeline is linear: parse the
// multipart form, validate everything, upload the evidence files in
// submission order, then persist.  No claim record is written unless every
// upload succeeded, and a failed pipeline removes whatever it already
// uploaded (best-effort) so the object store is not littered with orphans.
func (h *ClaimHandler) Submit(c echo.Context) error {
	userID, ok := middleware.SubjectID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fail(c, http.StatusBadRequest, "expected multipart form data")
	}
	photos := form.File["photos"]

	in, fieldErrs := validateClaimSubmission(
		c.FormValue("claimType"),
		c.FormValue("cropType"),
		c.FormValue("areaAffected"),
		c.FormValue("description"),
		c.FormValue("latitude"),
		c.FormValue("longitude"),
		photos,
	)
	if len(fieldErrs) > 0 {
		return failFields(c, http.StatusBadRequest, "validation failed", fieldErrs)
	}

	ctx := c.Request().Context()
	urls, publicIDs, err := h.uploadAll(ctx, photos)
	if err != nil {
		c.Logger().Errorf("claim submit: upload failed: %v", err)
		h.rollbackUploads(publicIDs)
		return fail(c, http.StatusInternalServerError, "failed to upload evidence files, please retry")
	}

	claim := &model.Claim{
		Reference:    uuid.NewString(),
		UserID:       userID,
		ClaimType:    in.ClaimType,
		CropType:     in.CropType,
		AreaAffected: in.AreaAffected,
		Description:  in.Description,
		PhotoURLs:    urls,
		Location:     in.Location,
		Status:       model.StatusPending,
	}

	// The DB connection is only acquired after all uploads completed, so a
	// slow CDN never pins a pooled connection.
	dbCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := h.Claims.Create(dbCtx, claim); err != nil {
		c.Logger().Errorf("claim submit: persist failed: %v", err)
		h.rollbackUploads(publicIDs)
		return fail(c, http.StatusInternalServerError, "failed to save claim")
	}
	now := time.Now().UTC()
	claim.CreatedAt = now
	claim.UpdatedAt = now

	go func(ev queue.ClaimSubmittedEvent) {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = qp.PublishClaimSubmitted(pubCtx, ev)
	}(queue.ClaimSubmittedEvent{
		ClaimRef:     claim.Reference,
		UserID:       claim.UserID,
		ClaimType:    string(claim.ClaimType),
		CropType:     string(claim.CropType),
		AreaAffected: claim.AreaAffected,
		PhotoCount:   len(claim.PhotoURLs),
		SubmittedAt:  now.Format(time.RFC3339),
	})

	return c.JSON(http.StatusCreated, echo.Map{"success": true, "claim": claim})
}

// uploadAll streams each photo to the object store under a generated name,
// sequentially and in submission order so photoUrls[i] corresponds to the
// i-th submitted file.  It returns the public ids of everything uploaded so
// far even on failure, for compensation.
func (h *ClaimHandler) uploadAll(ctx context.Context, photos []*multipart.FileHeader) (urls, publicIDs []string, err error) {
	for _, fh := range photos {
		f, err := fh.Open()
		if err != nil {
			return nil, publicIDs, err
		}
		res, err := h.Uploads.Upload(ctx, uuid.NewString(), f)
		f.Close()
		if err != nil {
			return nil, publicIDs, err
		}
		urls = append(urls, res.URL)
		publicIDs = append(publicIDs, res.PublicID)
	}
	return urls, publicIDs, nil
}

// rollbackUploads deletes already-uploaded objects after a later pipeline
// step failed.  Best-effort: a leftover object is cheaper than a claim
// record pointing at files that were never fully accepted.
func (h *ClaimHandler) rollbackUploads(publicIDs []string) {
	if len(publicIDs) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	for _, id := range publicIDs {
		if err := h.Uploads.Delete(ctx, id); err != nil {
			// Orphan cleanup also runs as a periodic job; just note it.
			continue
		}
	}
}

// List handles GET /claims, returning the caller's own claims, newest first.
func (h *ClaimHandler) List(c echo.Context) error {
	userID, ok := middleware.SubjectID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	claims, err := h.Claims.ListByUser(ctx, userID)
	if err != nil {
		return fail(c, http.StatusInternalServerError, "could not load claims")
	}
	if claims == nil {
		claims = []model.Claim{}
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "claims": claims})
}

// Get handles GET /claims/:id.  A claim is visible to its owner and to
// admins; everyone else sees 404 rather than 403, so claim references do not
// leak.
func (h *ClaimHandler) Get(c echo.Context) error {
	userID, ok := middleware.SubjectID(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "authentication required")
	}
	role, _ := middleware.SubjectRole(c)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	claim, err := h.Claims.GetByReference(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "claim not found")
		}
		return fail(c, http.StatusInternalServerError, "could not load claim")
	}
	if claim.UserID != userID && role != model.RoleAdmin {
		return fail(c, http.StatusNotFound, "claim not found")
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "claim": claim})
}

type statusReq struct {
	Status        string `json:"status"`
	ReviewerNotes string `json:"reviewerNotes"`
}

// UpdateStatus handles PATCH /claims/:id/status (admin only).  Approved and
// Rejected are terminal; the store write pins the expected current status so
// racing reviewers cannot overwrite each other.
func (h *ClaimHandler) UpdateStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid request body")
	}
	next := model.ClaimStatus(strings.TrimSpace(req.Status))
	if !next.Valid() {
		return fail(c, http.StatusBadRequest, "unknown claim status")
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	claim, err := h.Claims.GetByReference(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fail(c, http.StatusNotFound, "claim not found")
		}
		return fail(c, http.StatusInternalServerError, "could not load claim")
	}
	if !claim.Status.CanTransitionTo(next) {
		return fail(c, http.StatusConflict, "claim status cannot change from "+string(claim.Status))
	}

	if err := h.Claims.UpdateStatus(ctx, claim.Reference, claim.Status, next, strings.TrimSpace(req.ReviewerNotes)); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return fail(c, http.StatusConflict, "claim was updated concurrently, retry")
		}
		return fail(c, http.StatusInternalServerError, "could not update claim")
	}
	claim.Status = next
	claim.ReviewerNotes = strings.TrimSpace(req.ReviewerNotes)
	claim.UpdatedAt = time.Now().UTC()
	return c.JSON(http.StatusOK, echo.Map{"success": true, "claim": claim})
}
