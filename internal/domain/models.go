// Package domain defines the persistence models for users, carry requests,
// transport offers, route postings and notifications. Column names and
// nullability follow the existing relational schema so the service can attach
// to a database created by earlier deployments.
package domain

import (
	"gorm.io/datatypes"
)

// Request source and default presentation values.
const (
	SourceMarketplace = "marketplace"
)

// User is an account created by registration or by the first successful
// token-based identity resolution. Users are never deleted.
type User struct {
	ID             int     `json:"id"       gorm:"primaryKey"`
	Username       string  `json:"username" gorm:"type:varchar;uniqueIndex:ix_users_username"`
	Email          string  `json:"email"    gorm:"type:varchar;uniqueIndex:ix_users_email"`
	HashedPassword string  `json:"-"        gorm:"type:varchar"`
	Image          *string `json:"image"    gorm:"type:varchar"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// Request is a carry request: a user asking someone to bring goods between
// two locations, optionally placed against an Offer.
//
// When OfferID is set the Carrier* fields hold a snapshot of the offer owner
// taken at creation time; later profile changes do not propagate.
type Request struct {
	ID           int     `json:"id"            gorm:"primaryKey"`
	Title        string  `json:"title"         gorm:"type:varchar"`
	FromLocation string  `json:"from_location" gorm:"type:varchar"`
	ToLocation   string  `json:"to_location"   gorm:"type:varchar"`
	Deadline     string  `json:"deadline"      gorm:"type:varchar"`
	Budget       *int    `json:"budget"`
	Description  string  `json:"description"   gorm:"type:varchar"`
	Image        *string `json:"image"         gorm:"type:varchar"`
	UserID       int     `json:"user_id"       gorm:"index:ix_requests_user_id"`
	UserEmail    *string `json:"user_email"    gorm:"type:varchar"`
	OfferID      *int    `json:"offer_id"      gorm:"index:ix_requests_offer_id"`
	Source       string  `json:"source"        gorm:"type:varchar"`
	CarrierName  *string `json:"carrier_name"  gorm:"type:varchar"`
	CarrierEmail *string `json:"carrier_email" gorm:"type:varchar"`
	CarrierPhone *string `json:"carrier_phone" gorm:"type:varchar"`
	CarrierImage *string `json:"carrier_image" gorm:"type:varchar"`
	Status       string  `json:"status"        gorm:"type:varchar"`
}

// TableName returns the database table name for Request.
func (Request) TableName() string { return "requests" }

// Offer is a transport offer posted by a carrier. Rates holds serialized JSON
// text of the form [{"weight":"5kg","price":"300"}].
//
// Budget and Price are optional pricing hints used to backfill a request's
// budget. Older databases do not have these columns.
type Offer struct {
	ID           int            `json:"id"            gorm:"primaryKey"`
	RouteFrom    string         `json:"route_from"    gorm:"type:varchar"`
	RouteTo      string         `json:"route_to"      gorm:"type:varchar"`
	FlightDate   string         `json:"flight_date"   gorm:"type:varchar"`
	CloseDate    string         `json:"close_date"    gorm:"type:varchar"`
	DeliveryDate string         `json:"delivery_date" gorm:"type:varchar"`
	Rates        datatypes.JSON `json:"-"             gorm:"type:varchar"`
	PickupPlace  string         `json:"pickup_place"  gorm:"type:varchar"`
	ItemTypes    string         `json:"item_types"    gorm:"type:varchar"`
	Restrictions string         `json:"restrictions"  gorm:"type:varchar"`
	Description  string         `json:"description"   gorm:"type:varchar"`
	Contact      string         `json:"contact"       gorm:"type:varchar"`
	Urgent       string         `json:"urgent"        gorm:"type:varchar"`
	Image        *string        `json:"image"         gorm:"type:varchar"`
	UserID       int            `json:"user_id"       gorm:"index:ix_offers_user_id"`
	Budget       *int           `json:"budget,omitempty"`
	Price        *int           `json:"price,omitempty"`
}

// TableName returns the database table name for Offer.
func (Offer) TableName() string { return "offers" }

// Route is a carrier's posted trip.
type Route struct {
	ID           int    `json:"id"            gorm:"primaryKey"`
	FromLocation string `json:"from_location" gorm:"type:varchar"`
	ToLocation   string `json:"to_location"   gorm:"type:varchar"`
	Date         string `json:"date"          gorm:"type:varchar"`
	MaxWeight    int    `json:"max_weight"`
	ItemTypes    string `json:"item_types"    gorm:"type:varchar"`
	UserID       int    `json:"user_id"       gorm:"index:ix_routes_user_id"`
}

// TableName returns the database table name for Route.
func (Route) TableName() string { return "routes" }

// Notification is an append-only message addressed to one user. CreatedAt is
// an ISO-8601 string (see FormatTimestamp) so that lexical and chronological
// order agree for rows written by this service.
//
// RequestID links the notification to the request that triggered it; rows
// written by earlier deployments leave it NULL.
type Notification struct {
	ID        int    `json:"id"         gorm:"primaryKey"`
	UserID    int    `json:"user_id"    gorm:"index:ix_notifications_user_id"`
	Message   string `json:"message"    gorm:"type:varchar"`
	IsRead    int    `json:"is_read"`
	CreatedAt string `json:"created_at" gorm:"type:varchar;index:ix_notifications_created_at"`
	RequestID *int   `json:"request_id,omitempty"`
}

// TableName returns the database table name for Notification.
func (Notification) TableName() string { return "notifications" }

// Models lists every table the service owns, in migration order.
func Models() []any {
	return []any{&User{}, &Offer{}, &Request{}, &Route{}, &Notification{}, &Idempotency{}}
}
