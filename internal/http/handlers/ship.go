package handlers

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	types "github.com/Kcheesee/StarCitiSalesAgent/internal/domain"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/http/response"
	"github.com/Kcheesee/StarCitiSalesAgent/internal/services"
)

type ShipHandler struct {
	catalog services.CatalogService
}

func NewShipHandler(catalog services.CatalogService) *ShipHandler {
	return &ShipHandler{catalog: catalog}
}

// GET /api/ships/search?q=...&top_k=5&budget_max=...
func (h *ShipHandler) Search(c *gin.Context) {
	in, err := parseShipSearch(c)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_query", err)
		return
	}
	out, err := h.catalog.Search(c.Request.Context(), in)
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, out)
}

// GET /api/ships/:slug
func (h *ShipHandler) Get(c *gin.Context) {
	item, err := h.catalog.GetBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		response.RespondErr(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ship": item})
}

func parseShipSearch(c *gin.Context) (services.ShipSearchInput, error) {
	in := services.ShipSearchInput{
		Query: c.Query("q"),
		Boost: c.QueryArray("boost"),
	}
	var err error
	if in.TopK, err = queryInt(c, "top_k"); err != nil {
		return in, err
	}
	var f types.FilterSet
	if f.PriceMax, err = queryFloatPtr(c, "budget_max"); err != nil {
		return in, err
	}
	if f.PriceMin, err = queryFloatPtr(c, "budget_min"); err != nil {
		return in, err
	}
	if f.CargoMin, err = queryIntPtr(c, "cargo_min"); err != nil {
		return in, err
	}
	if f.CrewMax, err = queryIntPtr(c, "crew_max"); err != nil {
		return in, err
	}
	if v := strings.TrimSpace(c.Query("manufacturer")); v != "" {
		f.Manufacturer = &v
	}
	if v := strings.TrimSpace(c.Query("role")); v != "" {
		f.Role = &v
	}
	in.Filters = f
	return in, nil
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer", key)
	}
	return n, nil
}

func queryIntPtr(c *gin.Context, key string) (*int, error) {
	if strings.TrimSpace(c.Query(key)) == "" {
		return nil, nil
	}
	n, err := queryInt(c, key)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func queryFloatPtr(c *gin.Context, key string) (*float64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return nil, fmt.Errorf("%s must be a non-negative number", key)
	}
	return &v, nil
}
