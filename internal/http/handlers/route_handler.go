// Route HTTP handlers.
//
//   - GET    /routes       (list, skip/limit)
//   - POST   /routes       (auth)
//   - DELETE /routes/{id}  (owner)
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thaihand/carry-backend/internal/domain"
)

// CreateRouteRequest is the JSON payload for posting a trip. The owner is
// always the caller.
type CreateRouteRequest struct {
	FromLocation string `json:"from_location" binding:"required,max=255" example:"Osaka"`
	ToLocation   string `json:"to_location"   binding:"required,max=255" example:"Chiang Mai"`
	Date         string `json:"date"          binding:"max=64"           example:"2025-05-02"`
	MaxWeight    int    `json:"max_weight"    binding:"min=0"            example:"20"`
	ItemTypes    string `json:"item_types"    binding:"max=255"          example:"snacks, cosmetics"`
}

// ListRoutes godoc
// @ID          listRoutes
// @Summary     List posted routes
// @Tags        Routes
// @Produce     json
// @Param       skip   query  int  false  "Rows to skip"    minimum(0) default(0)
// @Param       limit  query  int  false  "Rows to return"  minimum(1) maximum(100) default(100)
// @Success     200  {array}  domain.Route
// @Router      /routes [get]
func (h *Handlers) ListRoutes(c *gin.Context) {
	skip, limit := clampPagination(c)
	items, err := h.routes.List(c.Request.Context(), skip, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// CreateRoute godoc
// @ID          createRoute
// @Summary     Post a route
// @Tags        Routes
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateRouteRequest  true  "Route"
// @Success     201   {object}  domain.Route
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Router      /routes [post]
func (h *Handlers) CreateRoute(c *gin.Context) {
	u, okUser := currentUser(c)
	if !okUser {
		return
	}
	var req CreateRouteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	r, err := h.routes.Create(c.Request.Context(), u.ID, domain.Route{
		FromLocation: req.FromLocation,
		ToLocation:   req.ToLocation,
		Date:         req.Date,
		MaxWeight:    req.MaxWeight,
		ItemTypes:    req.ItemTypes,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, r)
}

// DeleteRoute godoc
// @ID          deleteRoute
// @Summary     Delete a route
// @Tags        Routes
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Route ID"
// @Success     200  {object}  handlers.OKResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /routes/{id} [delete]
func (h *Handlers) DeleteRoute(c *gin.Context) {
	u, okUser := currentUser(c)
	if !okUser {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	if err := h.routes.Delete(c.Request.Context(), u.ID, id); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, OKResponse{OK: true})
}
