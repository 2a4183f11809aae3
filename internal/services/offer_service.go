// Package services – OfferService
//
// OfferService manages transport offers and builds the marketplace listing
// projection: parsed rates, owner identity, the weight an offer can carry and
// how many requests already reference it.
package services

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/repo"
	"github.com/thaihand/carry-backend/internal/search"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// OfferInput carries the fields of a new offer. Rates is serialized JSON.
type OfferInput struct {
	RouteFrom    string
	RouteTo      string
	FlightDate   string
	CloseDate    string
	DeliveryDate string
	Rates        string
	PickupPlace  string
	ItemTypes    string
	Restrictions string
	Description  string
	Contact      string
	Urgent       string
	Image        *string
	Budget       *int
	Price        *int
}

// OfferPatch is a partial update; nil fields are left unchanged.
type OfferPatch struct {
	RouteFrom    *string
	RouteTo      *string
	FlightDate   *string
	CloseDate    *string
	DeliveryDate *string
	Rates        *string
	PickupPlace  *string
	ItemTypes    *string
	Restrictions *string
	Description  *string
	Contact      *string
	Urgent       *string
	Image        *string
	Budget       *int
	Price        *int
}

func (p OfferPatch) fields(sc repo.Schema) map[string]any {
	out := map[string]any{}
	str := map[string]*string{
		"route_from":    p.RouteFrom,
		"route_to":      p.RouteTo,
		"flight_date":   p.FlightDate,
		"close_date":    p.CloseDate,
		"delivery_date": p.DeliveryDate,
		"rates":         p.Rates,
		"pickup_place":  p.PickupPlace,
		"item_types":    p.ItemTypes,
		"restrictions":  p.Restrictions,
		"description":   p.Description,
		"contact":       p.Contact,
		"urgent":        p.Urgent,
		"image":         p.Image,
	}
	for col, v := range str {
		if v != nil {
			out[col] = *v
		}
	}
	if sc.OfferPricing {
		if p.Budget != nil {
			out["budget"] = *p.Budget
		}
		if p.Price != nil {
			out["price"] = *p.Price
		}
	}
	return out
}

// OfferListing is the marketplace view of an offer.
type OfferListing struct {
	ID           int           `json:"id"`
	RouteFrom    string        `json:"routeFrom"`
	RouteTo      string        `json:"routeTo"`
	FlightDate   string        `json:"flightDate"`
	CloseDate    string        `json:"closeDate"`
	DeliveryDate string        `json:"deliveryDate"`
	Rates        []domain.Rate `json:"rates"`
	PickupPlace  string        `json:"pickupPlace"`
	ItemTypes    string        `json:"itemTypes"`
	Restrictions string        `json:"restrictions"`
	Description  string        `json:"description"`
	Contact      string        `json:"contact"`
	Urgent       string        `json:"urgent"`
	Image        *string       `json:"image"`
	UserID       int           `json:"user_id"`
	UserName     string        `json:"user_name"`
	UserEmail    string        `json:"user_email"`
	MaxWeight    float64       `json:"maxWeight"`
	UsedWeight   int           `json:"usedWeight"`
}

// SearchHit is an offer listing ranked against a marketplace query.
type SearchHit struct {
	OfferListing
	Score float64 `json:"score"`
}

// OfferService manages offers.
type OfferService struct {
	DB     *gorm.DB
	Schema repo.Schema

	// SearchPool caps how many offers a marketplace search considers.
	SearchPool int
}

// NewOfferService returns an OfferService searching the newest 500 offers.
func NewOfferService(db *gorm.DB, sc repo.Schema) *OfferService {
	return &OfferService{DB: db, Schema: sc, SearchPool: 500}
}

// Create stores an offer owned by userID.
func (s *OfferService) Create(ctx context.Context, userID int, in OfferInput) (*domain.Offer, error) {
	o := &domain.Offer{
		RouteFrom:    in.RouteFrom,
		RouteTo:      in.RouteTo,
		FlightDate:   in.FlightDate,
		CloseDate:    in.CloseDate,
		DeliveryDate: in.DeliveryDate,
		Rates:        []byte(strings.TrimSpace(in.Rates)),
		PickupPlace:  in.PickupPlace,
		ItemTypes:    in.ItemTypes,
		Restrictions: in.Restrictions,
		Description:  in.Description,
		Contact:      in.Contact,
		Urgent:       in.Urgent,
		Image:        in.Image,
		UserID:       userID,
		Budget:       in.Budget,
		Price:        in.Price,
	}
	if err := repo.CreateOffer(ctx, s.DB, s.Schema, o); err != nil {
		return nil, err
	}
	return o, nil
}

// Get returns an offer by id.
func (s *OfferService) Get(ctx context.Context, id int) (*domain.Offer, error) {
	o, err := repo.GetOffer(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOfferNotFound
	}
	return o, err
}

// List returns a page of offers in the marketplace projection.
func (s *OfferService) List(ctx context.Context, skip, limit int) ([]OfferListing, error) {
	tr := otel.Tracer("services/OfferService")
	ctx, span := tr.Start(ctx, "List",
		trace.WithAttributes(attribute.Int("skip", skip), attribute.Int("limit", limit)),
	)
	defer span.End()

	offers, err := repo.ListOffers(ctx, s.DB, skip, limit)
	if err != nil {
		return nil, err
	}
	return s.project(ctx, offers)
}

// Search ranks offers by word overlap between q and their route, item,
// restriction and description text; route matches break ties. Offers with
// no overlap are left out.
func (s *OfferService) Search(ctx context.Context, q string, limit int) ([]SearchHit, error) {
	tr := otel.Tracer("services/OfferService")
	ctx, span := tr.Start(ctx, "Search",
		trace.WithAttributes(attribute.String("query", q), attribute.Int("limit", limit)),
	)
	defer span.End()

	pool := s.SearchPool
	if pool <= 0 {
		pool = 500
	}
	offers, err := repo.ListOffers(ctx, s.DB, 0, pool)
	if err != nil {
		return nil, err
	}

	docs := make([]search.Document, len(offers))
	byID := make(map[int]domain.Offer, len(offers))
	for i, o := range offers {
		docs[i] = search.Document{
			ID:    o.ID,
			Route: o.RouteFrom + " " + o.RouteTo,
			Body:  strings.Join([]string{o.ItemTypes, o.Restrictions, o.PickupPlace, o.Description}, " "),
		}
		byID[o.ID] = o
	}
	ranked := search.New(docs).TopK(q, limit)
	span.SetAttributes(attribute.Int("hits", len(ranked)))

	matched := make([]domain.Offer, len(ranked))
	for i, r := range ranked {
		matched[i] = byID[r.ID]
	}
	listings, err := s.project(ctx, matched)
	if err != nil {
		return nil, err
	}
	out := make([]SearchHit, len(listings))
	for i := range listings {
		out[i] = SearchHit{OfferListing: listings[i], Score: ranked[i].Score}
	}
	return out, nil
}

// project converts offers into listings with owner and usage data.
func (s *OfferService) project(ctx context.Context, offers []domain.Offer) ([]OfferListing, error) {
	out := make([]OfferListing, 0, len(offers))
	if len(offers) == 0 {
		return out, nil
	}
	ids := make([]int, len(offers))
	owners := make([]int, len(offers))
	for i, o := range offers {
		ids[i] = o.ID
		owners[i] = o.UserID
	}
	users, err := repo.UsersByID(ctx, s.DB, owners)
	if err != nil {
		return nil, err
	}
	used, err := repo.CountRequestsByOffers(ctx, s.DB, ids)
	if err != nil {
		return nil, err
	}

	for _, o := range offers {
		rates := domain.ParseRates(o.Rates)
		if rates == nil {
			rates = []domain.Rate{}
		}
		l := OfferListing{
			ID:           o.ID,
			RouteFrom:    o.RouteFrom,
			RouteTo:      o.RouteTo,
			FlightDate:   o.FlightDate,
			CloseDate:    o.CloseDate,
			DeliveryDate: o.DeliveryDate,
			Rates:        rates,
			PickupPlace:  o.PickupPlace,
			ItemTypes:    o.ItemTypes,
			Restrictions: o.Restrictions,
			Description:  o.Description,
			Contact:      o.Contact,
			Urgent:       o.Urgent,
			Image:        o.Image,
			UserID:       o.UserID,
			MaxWeight:    domain.MaxWeight(rates),
			UsedWeight:   used[o.ID],
		}
		if u, ok := users[o.UserID]; ok {
			l.UserName = u.Username
			l.UserEmail = u.Email
		}
		out = append(out, l)
	}
	return out, nil
}

// Update applies p to an offer owned by userID.
func (s *OfferService) Update(ctx context.Context, userID, id int, p OfferPatch) (*domain.Offer, error) {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return nil, err
	}
	if err := repo.UpdateOffer(ctx, s.DB, id, p.fields(s.Schema)); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes an offer owned by userID.
func (s *OfferService) Delete(ctx context.Context, userID, id int) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := repo.DeleteOffer(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOfferNotFound
		}
		return err
	}
	return nil
}

func (s *OfferService) owned(ctx context.Context, userID, id int) (*domain.Offer, error) {
	o, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, ErrForbidden
	}
	return o, nil
}

// ListByEmail returns the offers posted by the user with the given email,
// newest first, with blank description and locations replaced by
// placeholders. An unknown email yields an empty list.
func (s *OfferService) ListByEmail(ctx context.Context, email string) ([]domain.Offer, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return []domain.Offer{}, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := repo.ListOffersByUser(ctx, s.DB, u.ID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Description = placeholder(items[i].Description, PlaceholderDescription)
		items[i].RouteFrom = placeholder(items[i].RouteFrom, PlaceholderLocation)
		items[i].RouteTo = placeholder(items[i].RouteTo, PlaceholderLocation)
	}
	if items == nil {
		items = []domain.Offer{}
	}
	return items, nil
}

// GetForUser returns offer id only when userID owns it.
func (s *OfferService) GetForUser(ctx context.Context, userID, id int) (*domain.Offer, error) {
	o, err := repo.GetOfferForUser(ctx, s.DB, id, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOfferNotFound
	}
	return o, err
}
