// Offer HTTP handlers.
//
//   - GET    /offers                 (marketplace projection, skip/limit)
//   - POST   /offers                 (auth)
//   - GET    /offers/{id}
//   - PUT    /offers/{id}            (partial update, owner)
//   - DELETE /offers/{id}            (owner)
//   - GET    /marketplace?q=&limit=  (ranked search)
//   - GET    /my-carry-orders?email=
//   - GET    /my-carry-orders/{id}?user_id=
package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/services"
	"github.com/thaihand/carry-backend/internal/utils"
)

// RatesField accepts offer rates either as serialized JSON text
// ("[{\"weight\":\"5kg\",\"price\":\"300\"}]") or as a JSON array, and keeps
// the serialized text.
type RatesField struct {
	Text string
	Set  bool
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *RatesField) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	r.Set = true
	switch {
	case bytes.Equal(b, []byte("null")):
		r.Set = false
		r.Text = ""
	case len(b) > 0 && b[0] == '"':
		return json.Unmarshal(b, &r.Text)
	case len(b) > 0 && b[0] == '[':
		var rates []domain.Rate
		if err := json.Unmarshal(b, &rates); err != nil {
			return err
		}
		out, err := json.Marshal(rates)
		if err != nil {
			return err
		}
		r.Text = string(out)
	default:
		return errors.New("rates must be a string or an array")
	}
	return nil
}

//
// DTOs
//

// CreateOfferRequest is the JSON payload for a new offer.
type CreateOfferRequest struct {
	RouteFrom    string     `json:"route_from"    binding:"required,max=255" example:"Tokyo"`
	RouteTo      string     `json:"route_to"      binding:"required,max=255" example:"Bangkok"`
	FlightDate   string     `json:"flight_date"   binding:"max=64"           example:"2025-04-01"`
	CloseDate    string     `json:"close_date"    binding:"max=64"`
	DeliveryDate string     `json:"delivery_date" binding:"max=64"`
	Rates        RatesField `json:"rates"         swaggertype:"string"       example:"[{\"weight\":\"5kg\",\"price\":\"300\"}]"`
	PickupPlace  string     `json:"pickup_place"  binding:"max=255"`
	ItemTypes    string     `json:"item_types"    binding:"max=255"`
	Restrictions string     `json:"restrictions"  binding:"max=1000"`
	Description  string     `json:"description"   binding:"max=4000"`
	Contact      string     `json:"contact"       binding:"max=255"`
	Urgent       string     `json:"urgent"        binding:"max=32"`
	Image        *string    `json:"image"`
	Budget       *int       `json:"budget"        binding:"omitempty,min=0"`
	Price        *int       `json:"price"         binding:"omitempty,min=0"`
}

// UpdateOfferRequest is a partial update; omitted fields are unchanged.
type UpdateOfferRequest struct {
	RouteFrom    *string    `json:"route_from"    binding:"omitempty,max=255"`
	RouteTo      *string    `json:"route_to"      binding:"omitempty,max=255"`
	FlightDate   *string    `json:"flight_date"   binding:"omitempty,max=64"`
	CloseDate    *string    `json:"close_date"    binding:"omitempty,max=64"`
	DeliveryDate *string    `json:"delivery_date" binding:"omitempty,max=64"`
	Rates        RatesField `json:"rates"         swaggertype:"string"`
	PickupPlace  *string    `json:"pickup_place"  binding:"omitempty,max=255"`
	ItemTypes    *string    `json:"item_types"    binding:"omitempty,max=255"`
	Restrictions *string    `json:"restrictions"  binding:"omitempty,max=1000"`
	Description  *string    `json:"description"   binding:"omitempty,max=4000"`
	Contact      *string    `json:"contact"       binding:"omitempty,max=255"`
	Urgent       *string    `json:"urgent"        binding:"omitempty,max=32"`
	Image        *string    `json:"image"`
	Budget       *int       `json:"budget"        binding:"omitempty,min=0"`
	Price        *int       `json:"price"         binding:"omitempty,min=0"`
}

func (r UpdateOfferRequest) patch() services.OfferPatch {
	p := services.OfferPatch{
		RouteFrom:    r.RouteFrom,
		RouteTo:      r.RouteTo,
		FlightDate:   r.FlightDate,
		CloseDate:    r.CloseDate,
		DeliveryDate: r.DeliveryDate,
		PickupPlace:  r.PickupPlace,
		ItemTypes:    r.ItemTypes,
		Restrictions: r.Restrictions,
		Description:  r.Description,
		Contact:      r.Contact,
		Urgent:       r.Urgent,
		Image:        r.Image,
		Budget:       r.Budget,
		Price:        r.Price,
	}
	if r.Rates.Set {
		text := r.Rates.Text
		p.Rates = &text
	}
	return p
}

// OfferResponse is the stored form of an offer; rates are serialized JSON text.
type OfferResponse struct {
	domain.Offer
	Rates string `json:"rates" example:"[{\"weight\":\"5kg\",\"price\":\"300\"}]"`
}

func offerResponse(o *domain.Offer) OfferResponse {
	return OfferResponse{Offer: *o, Rates: string(o.Rates)}
}

func offerResponses(items []domain.Offer) []OfferResponse {
	out := make([]OfferResponse, 0, len(items))
	for i := range items {
		out = append(out, offerResponse(&items[i]))
	}
	return out
}

//
// Handlers
//

// ListOffers godoc
// @ID          listOffers
// @Summary     List offers for the marketplace
// @Description Offers with parsed rates, owner name/email, maxWeight (largest rate weight, default 10) and usedWeight (number of requests against the offer).
// @Tags        Offers
// @Produce     json
// @Param       skip   query  int  false  "Rows to skip"    minimum(0) default(0)
// @Param       limit  query  int  false  "Rows to return"  minimum(1) maximum(100) default(100)
// @Success     200  {array}   services.OfferListing
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /offers [get]
func (h *Handlers) ListOffers(c *gin.Context) {
	skip, limit := clampPagination(c)
	items, err := h.offers.List(c.Request.Context(), skip, limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, items)
}

// CreateOffer godoc
// @ID          createOffer
// @Summary     Post a transport offer
// @Tags        Offers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       body  body      handlers.CreateOfferRequest  true  "Offer"
// @Success     201   {object}  handlers.OfferResponse
// @Failure     400   {object}  handlers.ErrorResponse
// @Failure     401   {object}  handlers.ErrorResponse
// @Router      /offers [post]
func (h *Handlers) CreateOffer(c *gin.Context) {
	u, okUser := currentUser(c)
	if !okUser {
		return
	}
	var req CreateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	o, err := h.offers.Create(c.Request.Context(), u.ID, services.OfferInput{
		RouteFrom:    req.RouteFrom,
		RouteTo:      req.RouteTo,
		FlightDate:   req.FlightDate,
		CloseDate:    req.CloseDate,
		DeliveryDate: req.DeliveryDate,
		Rates:        req.Rates.Text,
		PickupPlace:  req.PickupPlace,
		ItemTypes:    req.ItemTypes,
		Restrictions: req.Restrictions,
		Description:  req.Description,
		Contact:      req.Contact,
		Urgent:       req.Urgent,
		Image:        req.Image,
		Budget:       req.Budget,
		Price:        req.Price,
	})
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusCreated, offerResponse(o))
}

// GetOffer godoc
// @ID          getOffer
// @Summary     Get an offer
// @Tags        Offers
// @Produce     json
// @Param       id   path      int  true  "Offer ID"
// @Success     200  {object}  handlers.OfferResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /offers/{id} [get]
func (h *Handlers) GetOffer(c *gin.Context) {
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	o, err := h.offers.Get(c.Request.Context(), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, offerResponse(o))
}

// UpdateOffer godoc
// @ID          updateOffer
// @Summary     Update an offer
// @Tags        Offers
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path      int                          true  "Offer ID"
// @Param       body  body      handlers.UpdateOfferRequest  true  "Fields to change"
// @Success     200   {object}  handlers.OfferResponse
// @Failure     403   {object}  handlers.ErrorResponse
// @Failure     404   {object}  handlers.ErrorResponse
// @Router      /offers/{id} [put]
func (h *Handlers) UpdateOffer(c *gin.Context) {
	u, okUser := currentUser(c)
	if !okUser {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	var req UpdateOfferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindFail(c, err)
		return
	}
	o, err := h.offers.Update(c.Request.Context(), u.ID, id, req.patch())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, offerResponse(o))
}

// DeleteOffer godoc
// @ID          deleteOffer
// @Summary     Delete an offer
// @Tags        Offers
// @Produce     json
// @Security    BearerAuth
// @Param       id   path      int  true  "Offer ID"
// @Success     200  {object}  handlers.OKResponse
// @Failure     403  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /offers/{id} [delete]
func (h *Handlers) DeleteOffer(c *gin.Context) {
	u, okUser := currentUser(c)
	if !okUser {
		return
	}
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	if err := h.offers.Delete(c.Request.Context(), u.ID, id); err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, OKResponse{OK: true})
}

// SearchMarketplace godoc
// @ID          searchMarketplace
// @Summary     Search offers
// @Description Ranks offers by token overlap with q across route, item types, restrictions, pickup place and description. Offers sharing no token with q are left out.
// @Tags        Offers
// @Produce     json
// @Param       q      query    string  false  "Search text"  example(tokyo snacks)
// @Param       limit  query    int     false  "Max results"  minimum(1) maximum(100) default(20)
// @Success     200    {array}  services.SearchHit
// @Router      /marketplace [get]
func (h *Handlers) SearchMarketplace(c *gin.Context) {
	limit := utils.AtoiDefault(c.Query("limit"), 20)
	if limit < 1 {
		limit = 1
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	hits, err := h.offers.Search(c.Request.Context(), strings.TrimSpace(c.Query("q")), limit)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, hits)
}

// MyCarryOrders godoc
// @ID          myCarryOrders
// @Summary     Offers posted by a user
// @Tags        Offers
// @Produce     json
// @Param       email  query    string  true  "Owner email"
// @Success     200    {array}  handlers.OfferResponse
// @Failure     400    {object} handlers.ErrorResponse
// @Router      /my-carry-orders [get]
func (h *Handlers) MyCarryOrders(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "email is required")
		return
	}
	items, err := h.offers.ListByEmail(c.Request.Context(), email)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, offerResponses(items))
}

// MyCarryOrder godoc
// @ID          myCarryOrder
// @Summary     One offer posted by a user
// @Tags        Offers
// @Produce     json
// @Param       id       path      int  true  "Offer ID"
// @Param       user_id  query     int  true  "Owner user ID"
// @Success     200      {object}  handlers.OfferResponse
// @Failure     400      {object}  handlers.ErrorResponse
// @Failure     404      {object}  handlers.ErrorResponse
// @Router      /my-carry-orders/{id} [get]
func (h *Handlers) MyCarryOrder(c *gin.Context) {
	id, okID := idParam(c, "id")
	if !okID {
		return
	}
	uid, err := strconv.Atoi(c.Query("user_id"))
	if err != nil || uid <= 0 {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "user_id must be a positive integer")
		return
	}
	o, err := h.offers.GetForUser(c.Request.Context(), uid, id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, offerResponse(o))
}
