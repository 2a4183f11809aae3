// Package services – RequestService
//
// RequestService owns carry requests: creation with offer enrichment and the
// offer-owner notification, partial updates and deletion by the owner, the
// status lifecycle, and the "my orders" listing with its presentation
// placeholders.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/domain"
	"github.com/thaihand/carry-backend/internal/history"
	"github.com/thaihand/carry-backend/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// MessageNewRequest is sent to an offer owner when a request is placed
// against their offer.
const MessageNewRequest = "มีคนฝากหิ้วกับคุณ"

// ScopeCreateRequest namespaces idempotency keys of request creation.
const ScopeCreateRequest = "requests.create"

// Placeholders substituted for blank fields in "my orders" listings.
const (
	PlaceholderTitle       = "รายการฝากหิ้ว"
	PlaceholderDescription = "ไม่มีรายละเอียดเพิ่มเติม"
	PlaceholderLocation    = "ไม่ระบุ"
)

// Notifier appends a notification for a user.
type Notifier interface {
	Notify(ctx context.Context, userID int, message string, requestID *int) (*domain.Notification, bool, error)
}

// RequestInput carries the client-supplied fields of a new request. Blank
// fields are backfilled from the referenced offer when there is one.
type RequestInput struct {
	Title        string
	FromLocation string
	ToLocation   string
	Deadline     string
	Budget       *int
	Description  string
	Image        *string
	OfferID      *int
	Source       string
}

// RequestPatch is a partial update; nil fields are left unchanged.
type RequestPatch struct {
	Title        *string
	FromLocation *string
	ToLocation   *string
	Deadline     *string
	Budget       *int
	Description  *string
	Image        *string
	OfferID      *int
	Source       *string
	CarrierName  *string
	CarrierEmail *string
	CarrierPhone *string
	CarrierImage *string
}

func (p RequestPatch) fields() map[string]any {
	out := map[string]any{}
	set := func(col string, v any, ok bool) {
		if ok {
			out[col] = v
		}
	}
	set("title", deref(p.Title), p.Title != nil)
	set("from_location", deref(p.FromLocation), p.FromLocation != nil)
	set("to_location", deref(p.ToLocation), p.ToLocation != nil)
	set("deadline", deref(p.Deadline), p.Deadline != nil)
	set("budget", derefInt(p.Budget), p.Budget != nil)
	set("description", deref(p.Description), p.Description != nil)
	set("image", deref(p.Image), p.Image != nil)
	set("offer_id", derefInt(p.OfferID), p.OfferID != nil)
	set("source", deref(p.Source), p.Source != nil)
	set("carrier_name", deref(p.CarrierName), p.CarrierName != nil)
	set("carrier_email", deref(p.CarrierEmail), p.CarrierEmail != nil)
	set("carrier_phone", deref(p.CarrierPhone), p.CarrierPhone != nil)
	set("carrier_image", deref(p.CarrierImage), p.CarrierImage != nil)
	return out
}

// RequestService coordinates request persistence and its side effects.
type RequestService struct {
	DB       *gorm.DB
	Schema   repo.Schema
	Notifier Notifier
	History  history.Recorder

	// IdempotencyTTL is how long a create result stays replayable.
	IdempotencyTTL time.Duration
}

// NewRequestService returns a RequestService that discards status history.
func NewRequestService(db *gorm.DB, sc repo.Schema, n Notifier) *RequestService {
	return &RequestService{
		DB:             db,
		Schema:         sc,
		Notifier:       n,
		History:        history.Nop{},
		IdempotencyTTL: 24 * time.Hour,
	}
}

// Create stores a request owned by user. When OfferID names an existing
// offer, blank fields are backfilled from it, the carrier snapshot is taken
// from the offer owner, and the owner is notified after the commit. A
// missing offer skips enrichment. Notification failures are logged and
// never fail the create.
func (s *RequestService) Create(ctx context.Context, user *domain.User, in RequestInput) (*domain.Request, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "Create",
		trace.WithAttributes(attribute.Int("user.id", user.ID)),
	)
	defer span.End()

	r := &domain.Request{
		Title:        strings.TrimSpace(in.Title),
		FromLocation: in.FromLocation,
		ToLocation:   in.ToLocation,
		Deadline:     in.Deadline,
		Budget:       in.Budget,
		Description:  in.Description,
		Image:        in.Image,
		UserID:       user.ID,
		OfferID:      in.OfferID,
		Source:       strings.TrimSpace(in.Source),
		Status:       string(domain.StatusPending),
	}
	if user.Email != "" {
		r.UserEmail = &user.Email
	}
	if r.Source == "" {
		r.Source = domain.SourceMarketplace
	}

	var offer *domain.Offer
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if r.OfferID != nil {
			o, err := repo.GetOffer(ctx, tx, *r.OfferID)
			switch {
			case err == nil:
				offer = o
				if err := enrichFromOffer(ctx, tx, r, o); err != nil {
					return err
				}
			case !errors.Is(err, repo.ErrNotFound):
				return err
			}
		}
		if r.Budget == nil || *r.Budget == 0 {
			zero := 0
			r.Budget = &zero
		}
		return repo.CreateRequest(ctx, tx, s.Schema, r)
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if offer != nil && s.Notifier != nil {
		id := r.ID
		if _, _, err := s.Notifier.Notify(ctx, offer.UserID, MessageNewRequest, &id); err != nil {
			logger(ctx).Error().Err(err).
				Int("request_id", r.ID).
				Int("offer_id", offer.ID).
				Msg("notify offer owner")
		}
	}
	return r, nil
}

// enrichFromOffer fills blank request fields from o and snapshots its owner.
func enrichFromOffer(ctx context.Context, tx *gorm.DB, r *domain.Request, o *domain.Offer) error {
	owner, err := repo.GetUserByID(ctx, tx, o.UserID)
	switch {
	case err == nil:
		r.CarrierName = strPtr(owner.Username)
		r.CarrierEmail = strPtr(owner.Email)
		r.CarrierImage = owner.Image
	case !errors.Is(err, repo.ErrNotFound):
		return err
	}

	if r.FromLocation == "" {
		r.FromLocation = o.RouteFrom
	}
	if r.ToLocation == "" {
		r.ToLocation = o.RouteTo
	}
	if r.Budget == nil || *r.Budget == 0 {
		switch {
		case o.Budget != nil && *o.Budget != 0:
			r.Budget = intPtr(*o.Budget)
		case o.Price != nil && *o.Price != 0:
			r.Budget = intPtr(*o.Price)
		}
	}
	if r.Description == "" {
		r.Description = o.Description
	}
	if r.Image == nil || *r.Image == "" {
		r.Image = o.Image
	}
	return nil
}

// CreateIdempotent is Create keyed by a client idempotency key. A key seen
// before (and not expired) for the same user returns the original request
// with replayed=true. An empty key behaves like Create.
func (s *RequestService) CreateIdempotent(ctx context.Context, user *domain.User, in RequestInput, key string) (r *domain.Request, replayed bool, err error) {
	if key == "" {
		r, err = s.Create(ctx, user, in)
		return r, false, err
	}
	if rec, err := repo.GetIdempotency(ctx, s.DB, user.ID, ScopeCreateRequest, key, time.Now().UTC()); err == nil {
		if prev, err := repo.GetRequest(ctx, s.DB, rec.ResourceID); err == nil {
			return prev, true, nil
		}
	}

	r, err = s.Create(ctx, user, in)
	if err != nil {
		return nil, false, err
	}
	if _, err := repo.CreateIdempotency(ctx, s.DB, user.ID, ScopeCreateRequest, key, r.ID, 201, s.IdempotencyTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
		logger(ctx).Warn().Err(err).Str("key", key).Msg("store idempotency record")
	}
	return r, false, nil
}

// HasReplay reports whether key already produced a request for userID.
func (s *RequestService) HasReplay(ctx context.Context, userID int, scope, key string, now time.Time) (bool, error) {
	_, err := repo.GetIdempotency(ctx, s.DB, userID, scope, key, now)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// Get returns a request by id.
func (s *RequestService) Get(ctx context.Context, id int) (*domain.Request, error) {
	r, err := repo.GetRequest(ctx, s.DB, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrRequestNotFound
	}
	return r, err
}

// List returns a page of requests.
func (s *RequestService) List(ctx context.Context, skip, limit int) ([]domain.Request, error) {
	items, err := repo.ListRequests(ctx, s.DB, skip, limit)
	if items == nil && err == nil {
		items = []domain.Request{}
	}
	return items, err
}

// ListForOffer returns every request placed against offerID.
func (s *RequestService) ListForOffer(ctx context.Context, offerID int) ([]domain.Request, error) {
	items, err := repo.ListRequestsByOffer(ctx, s.DB, offerID)
	if items == nil && err == nil {
		items = []domain.Request{}
	}
	return items, err
}

// ListByEmail returns the requests of the user with the given email, newest
// first, with blank fields replaced by placeholders and non-positive budgets
// cleared. An unknown email yields an empty list.
func (s *RequestService) ListByEmail(ctx context.Context, email string) ([]domain.Request, error) {
	u, err := repo.GetUserByEmail(ctx, s.DB, email)
	if errors.Is(err, repo.ErrNotFound) {
		return []domain.Request{}, nil
	}
	if err != nil {
		return nil, err
	}
	items, err := repo.ListRequestsByUser(ctx, s.DB, u.ID)
	if err != nil {
		return nil, err
	}
	for i := range items {
		presentRequest(&items[i])
	}
	if items == nil {
		items = []domain.Request{}
	}
	return items, nil
}

func presentRequest(r *domain.Request) {
	if r.Budget != nil && *r.Budget <= 0 {
		r.Budget = nil
	}
	r.Title = placeholder(r.Title, PlaceholderTitle)
	r.Description = placeholder(r.Description, PlaceholderDescription)
	r.FromLocation = placeholder(r.FromLocation, PlaceholderLocation)
	r.ToLocation = placeholder(r.ToLocation, PlaceholderLocation)
}

// Update applies p to a request owned by userID.
func (s *RequestService) Update(ctx context.Context, userID, id int, p RequestPatch) (*domain.Request, error) {
	r, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := repo.UpdateRequest(ctx, s.DB, r.ID, p.fields()); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrRequestNotFound
		}
		return nil, err
	}
	return s.Get(ctx, id)
}

// Delete removes a request owned by userID.
func (s *RequestService) Delete(ctx context.Context, userID, id int) error {
	if _, err := s.owned(ctx, userID, id); err != nil {
		return err
	}
	if err := repo.DeleteRequest(ctx, s.DB, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRequestNotFound
		}
		return err
	}
	return nil
}

func (s *RequestService) owned(ctx context.Context, userID, id int) (*domain.Request, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.UserID != userID {
		return nil, ErrForbidden
	}
	return r, nil
}

// UpdateStatus moves a request to the status named by raw, which may be a
// canonical or legacy label. The request owner and the owner of the offer it
// was placed against may change it. Re-applying the current status is a
// no-op. A stored status that does not parse is treated as pending.
func (s *RequestService) UpdateStatus(ctx context.Context, actorID, id int, raw string) (*domain.Request, error) {
	tr := otel.Tracer("services/RequestService")
	ctx, span := tr.Start(ctx, "UpdateStatus",
		trace.WithAttributes(
			attribute.Int("request.id", id),
			attribute.String("status", raw),
		),
	)
	defer span.End()

	next, ok := domain.ParseStatus(raw)
	if !ok {
		return nil, ErrInvalidStatus
	}
	if !s.Schema.RequestStatus {
		return nil, ErrUnsupported
	}

	var (
		r       *domain.Request
		current domain.Status
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		r, err = repo.GetRequest(ctx, tx, id)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrRequestNotFound
		}
		if err != nil {
			return err
		}
		if err := authorizeStatus(ctx, tx, r, actorID); err != nil {
			return err
		}

		current, ok = domain.ParseStatus(r.Status)
		if !ok {
			current = domain.StatusPending
		}
		if !current.CanTransition(next) {
			return ErrInvalidTransition
		}
		if current == next {
			return nil
		}
		if err := repo.UpdateRequest(ctx, tx, id, map[string]any{"status": string(next)}); err != nil {
			return err
		}
		r.Status = string(next)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	if current != next && s.History != nil {
		ev := &history.StatusChange{
			RequestID: id,
			OldStatus: string(current),
			NewStatus: string(next),
			ChangedBy: actorID,
		}
		if err := s.History.RecordStatus(ctx, ev); err != nil {
			logger(ctx).Warn().Err(err).Int("request_id", id).Msg("record status history")
		}
	}
	r.Status = string(next)
	return r, nil
}

func authorizeStatus(ctx context.Context, tx *gorm.DB, r *domain.Request, actorID int) error {
	if r.UserID == actorID {
		return nil
	}
	if r.OfferID != nil {
		if _, err := repo.GetOfferForUser(ctx, tx, *r.OfferID, actorID); err == nil {
			return nil
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}
	}
	return ErrForbidden
}

func placeholder(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func intPtr(v int) *int { return &v }

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func derefInt(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
