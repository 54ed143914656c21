package handlers

import (
	"net/http"

	"github.com/dvloznov/billflow/internal/api/middleware"
	"github.com/dvloznov/billflow/internal/domain"
	"github.com/rs/zerolog"
)

// ProfileStore reads and replaces the organization profile.
type ProfileStore interface {
	Get() domain.Organization
	Update(org domain.Organization) (domain.Organization, error)
}

// OrganizationHandler handles the organization profile.
type OrganizationHandler struct {
	profile ProfileStore
	log     zerolog.Logger
}

// NewOrganizationHandler creates a new organization handler.
func NewOrganizationHandler(profile ProfileStore, log zerolog.Logger) *OrganizationHandler {
	return &OrganizationHandler{profile: profile, log: log}
}

// Get handles GET /api/organization
func (h *OrganizationHandler) Get(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, h.profile.Get())
}

// Update handles PUT /api/organization
func (h *OrganizationHandler) Update(w http.ResponseWriter, r *http.Request) {
	var org domain.Organization
	if err := decodeJSON(w, r, &org); err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	saved, err := h.profile.Update(org)
	if err != nil {
		middleware.WriteDomainError(w, r, err)
		return
	}

	h.log.Info().Str("organization", saved.Name).Str("currency", saved.Currency).Msg("Organization profile updated")
	middleware.WriteJSON(w, http.StatusOK, saved)
}
