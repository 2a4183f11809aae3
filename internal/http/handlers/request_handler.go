// Carry-request HTTP handlers.
//
//   - GET    /requests               (list, skip/limit)
//   - POST   /requests               (create, auth, Idempotency-Key aware)
//   - GET    /requests/{id}
//   - PUT    /requests/{id}          (partial update, owner)
//   - DELETE /requests/{id}          (owner)
//   - PATCH  /requests/{id}/status   (request owner or offer owner)
//   - GET    /offers/{id}/requests
//   - GET    /my-orders?email=
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thaihand/carry-backend/internal/http/middleware"
	"github.com/thaihand/carry-backend/internal/services"
)

//
// DTOs
//

// CreateRequestRequest is the JSON payload for a new carry request. Blank
// locations, description, image and budget are filled from the referenced
// offer. Carrier fields are accepted for compatibility and ignored; the
// carrier snapshot always comes from the offer owner.
type CreateRequestRequest struct {
	Title        string  `json:"title"         binding:"required,max=255" example:"Japanese snacks"`
	FromLocation string  `json:"from_location" binding:"max=255"          example:"Tokyo"`
	ToLocation   string  `json:"to_location"   binding:"max=255"          example:"Bangkok"`
	Deadline     string  `json:"deadline"      binding:"max=64"           example:"2025-04-01"`
	Budget       *int    `json:"budget"        binding:"omitempty,min=0"  example:"500"`
	Description  string  `json:"description"   binding:"max=4000"`
	Image        *string `json:"image"`
	OfferID      *int    `json:"offer_id"      binding:"omitempty,min=1"  example:"3"`
	Source       string  `json:"source"        binding:"max=64"           example:"marketplace"`
	CarrierName  *string `json:"carrier_name"  swaggerignore:"true"`
	CarrierEmail *string `json:"carrier_email" swaggerignore:"true"`
	CarrierPhone *string `json:"carrier_phone" swaggerignore:"true"`
	CarrierImage *string `json:"carrier_image" swaggerignore:"true"`
}

// UpdateRequestRequest is a partial update; omitted fields are unchanged.
type UpdateRequestRequest struct {
	Title        *string `json:"title"         binding:"omitempty,max=255"`
	FromLocation *string `json:"from_location" binding:"omitempty,max=255"`
	ToLocation   *string `json:"to_location"   binding:"omitempty,max=255"`
	Deadline     *string `json:"deadline"      binding:"omitempty,max=64"`
	Budget       *int    `json:"budget"        binding:"omitempty,min=0"`
	Description  *string `json:"description"   binding:"omitempty,max=4000"`
	Image        *string `json:"image"`
	OfferID      *int    `json:"offer_id"      binding:"omitempty,min=1"`
	Source       *string `json:"source"        binding:"omitempty,max=64"`
	CarrierName  *string `json:"carrier_name"`
	CarrierEmail *string `json:"carrier_email"`
	CarrierPhone *string `json:"carrier_phone"`
	CarrierImage *string `json:"carrier_image"`
}

func (r UpdateRequestRequest) patch() services.RequestPatch {
	return services.RequestPatch{
		Title:        r.Title,
		FromLocation: r.FromLocation,
		ToLocation:   r.ToLocation,
		Deadline:     r.Deadline,
		Budget:       r.Budget,
		Description:  r.Description,
		Image:        r.Image,
		OfferID:      r.OfferID,
		Source:       r.Source,
		CarrierName:  r.CarrierName,
		CarrierEmail: r.CarrierEmail,
		CarrierPhone: r.CarrierPhone,
		CarrierImage: r.CarrierImage,
	}
}

// UpdateStatusRequest sets a request's lifecycle status. English values
// (pending, approved, rejected, completed) and their Thai labels are accepted.
type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required" example:"approved"`
}

// StatusResponse acknowledges a status change.
type StatusResponse struct {
	OK     bool   `json:"ok"     example:"true"`
	Status string `json:"status" example:"approved"`
}

//
// Handlers
//

// ListRequests godoc
// @ID          listRequests
// @Summary     List carry requests
// @Tags        Requests
// @Produce     json
// @Param       skip   query  int  false  "Rows to skip"    minimum(0) default(0)
// @Param       limit  query  int  false  "Rows to return"  minimum(1) maximum(100) default(100)
// @Success     200  {array}   domain.Request
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /requests [get]
func (h *Handlers) ListRequests(c *gin.Context) {
	skip, limit := clampPagination(c)
	items, err := h.requests.List(c.Request.Context(), skip, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// CreateRequest godoc
// @ID          createRequest
// @Summary     Create a carry request
// @Description Creates a request owned by the caller. With offer_id, blank fields are backfilled from the offer and the offer owner is notified. Repeating an Idempotency-Key returns the original request with 200.
// @Tags        Requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       Idempotency-Key  header  string  false  "Client idempotency key"
// @Param       body  body      handlers.CreateRequestRequest  true  "Request"
// @Success     201   {object}  domain.Request
// @Success     200   {object}  domain.Request  "Replayed"
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Failure     500   {object}  handlers.ErrorResponse
// @Router      /requests [post]
func (h *Handlers) CreateRequest(c *gin.Context) {
	u, okUser := currentUser(c)
	if !okUser {
		return
	}
	var req CreateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	key, _ := middleware.GetIdempotencyKey(c)
	in := services.RequestInput{
		Title:        strings.TrimSpace(req.Title),
		FromLocation: req.FromLocation,
		ToLocation:   req.ToLocation,
		Deadline:     req.Deadline,
		Budget:       req.Budget,
		Description:  req.Description,
		Image:        req.Image,
		OfferID:      req.OfferID,
		Source:       req.Source,
	}
	r, replayed, err := h.requests.CreateIdempotent(c.Request.Context(), u, in, key)
	if err != nil {
		failErr(c, err)
		return
	}
	if replayed {
		c.Header("Idempotent-Replay", "true")
		ok(c, http.StatusOK, r)
		return
	}
	ok(c, http.StatusCreated, r)
}

// GetRequest godoc
// @ID          getRequest
// @Summary     Get a carry request
// @Tags        Requests
// @Produce     json
// @Param       id   path      int  true  "Request ID"
// @Success     200  {object}  domain.Request
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /requests/{id} [get]
func (h *Handlers) GetRequest(c *gin.Context) {
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	r, err := h.requests.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// UpdateRequest godoc
// @ID          updateRequest
// @Summary     Update a carry request
// @Tags        Requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      int                            true  "Request ID"
// @Param       body  body      handlers.UpdateRequestRequest  true  "Fields to change"
// @Success     200   {object}  domain.Request
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     403   {object}  handlers.ErrorResponse  "Not the owner"
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /requests/{id} [put]
func (h *Handlers) UpdateRequest(c *gin.Context) {
	u, okUser := currentUser(c)
	if !okUser {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	var req UpdateRequestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	r, err := h.requests.Update(c.Request.Context(), u.ID, id, req.patch())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, r)
}

// DeleteRequest godoc
// @ID          deleteRequest
// @Summary     Delete a carry request
// @Tags        Requests
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Request ID"
// @Success     200  {object}  handlers.OKResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /requests/{id} [delete]
func (h *Handlers) DeleteRequest(c *gin.Context) {
	u, okUser := currentUser(c)
	if !okUser {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	if err := h.requests.Delete(c.Request.Context(), u.ID, id); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, OKResponse{OK: true})
}

// UpdateRequestStatus godoc
// @ID          updateRequestStatus
// @Summary     Change a request's status
// @Description Allowed: pending→approved|rejected, approved→completed. Setting the current status again is a no-op.
// @Tags        Requests
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      int                           true  "Request ID"
// @Param       body  body      handlers.UpdateStatusRequest  true  "New status"
// @Success     200   {object}  handlers.StatusResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Unknown status"
// @Failure     403   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Failure     409   {object}  handlers.ErrorResponse  "Transition not allowed"
// @Router      /requests/{id}/status [patch]
func (h *Handlers) UpdateRequestStatus(c *gin.Context) {
	u, okUser := currentUser(c)
	if !okUser {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	r, err := h.requests.UpdateStatus(c.Request.Context(), u.ID, id, req.Status)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, StatusResponse{OK: true, Status: r.Status})
}

// ListOfferRequests godoc
// @ID          listOfferRequests
// @Summary     Requests placed against an offer
// @Tags        Offers
// @Produce     json
// @Param       id   path     int  true  "Offer ID"
// @Success     200  {array}  domain.Request
// @Router      /offers/{id}/requests [get]
func (h *Handlers) ListOfferRequests(c *gin.Context) {
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	items, err := h.requests.ListForOffer(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// MyOrders godoc
// @ID          myOrders
// @Summary     Requests created by a user
// @Description Newest first. Blank text fields are replaced with display placeholders; non-positive budgets are returned as null.
// @Tags        Requests
// @Produce     json
// @Param       email  query    string  true  "Owner email"
// @Success     200    {array}  domain.Request
// @Failure     400    {object} handlers.ErrorResponse
// @Router      /my-orders [get]
func (h *Handlers) MyOrders(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email is required")
		return
	}
	items, err := h.requests.ListByEmail(c.Request.Context(), email)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}
