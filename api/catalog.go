package api

import (
	"fmt"
	"net/http"

	"github.com/garnizeh/fixit/internal/catalog"
	"github.com/garnizeh/fixit/pkg/models"
)

type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

func categoryParam(r *http.Request) (models.JobCategory, error) {
	c := models.JobCategory(r.URL.Query().Get("category"))
	if c != "" && !c.Valid() {
		return "", fmt.Errorf("%w: unknown category %q", models.ErrValidation, c)
	}
	return c, nil
}

func (h *CatalogHandler) ServicePackages(w http.ResponseWriter, r *http.Request) {
	c, err := categoryParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.ServicePackages(c))
}

func (h *CatalogHandler) SubscriptionPlans(w http.ResponseWriter, r *http.Request) {
	c, err := categoryParam(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, h.catalog.SubscriptionPlans(c))
}
