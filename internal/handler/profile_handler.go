package handler

import (
	"net/http"

	"github.com/buildbyprohor/studio-api/internal/domain"
	"github.com/buildbyprohor/studio-api/internal/imagetool"
	"github.com/buildbyprohor/studio-api/internal/user"

	"go.uber.org/zap"
)

// getMeHandler handles GET /v1/me.
func getMeHandler(users *user.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())
		profile, err := users.Get(r.Context(), p.UserID)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, profile)
	}
}

// setupMeHandler handles POST /v1/me/setup: the one-time profile
// creation after first sign-in.
func setupMeHandler(users *user.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())

		var profile domain.UserProfile
		if !decodeBody(w, r, &profile) {
			return
		}
		if profile.Email == "" {
			profile.Email = p.Email
		}
		if err := users.Setup(r.Context(), p.UserID, &profile); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
	}
}

// updateMeHandler handles PUT /v1/me: the owner-editable subset,
// subject to the edit cooldown.
func updateMeHandler(users *user.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())

		var update user.OwnerUpdate
		if !decodeBody(w, r, &update) {
			return
		}
		if err := users.UpdateOwn(r.Context(), p.UserID, &update); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
	}
}

// pictureHandler handles POST /v1/me/picture: crop, downscale and
// store a profile picture. The crop defaults to a centered square.
func pictureHandler(users *user.Service, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p := PrincipalFromContext(r.Context())

		var req struct {
			Image string              `json:"image"`
			Crop  *imagetool.CropRect `json:"crop"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Image == "" {
			handleServiceError(w, &domain.ErrValidation{Field: "image", Message: "image is required"}, logger)
			return
		}

		input := []byte(req.Image)
		crop := imagetool.CropRect{}
		if req.Crop != nil {
			crop = *req.Crop
		} else {
			width, height, err := imagetool.Dimensions(input)
			if err != nil {
				handleServiceError(w, err, logger)
				return
			}
			crop = imagetool.CenteredSquare(width, height)
		}

		dataURL, err := imagetool.CropToDataURL(input, crop)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := users.SetPicture(r.Context(), p.UserID, dataURL); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"picBase64": dataURL})
	}
}
