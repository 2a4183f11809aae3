package repo

import (
	"gorm.io/gorm"

	"github.com/thaihand/carry-backend/internal/domain"
)

// Schema records which optional columns exist in the attached database.
// Databases created by earlier deployments may lack columns this service
// added later; reads tolerate that automatically (SELECT * maps only what is
// present) but writes and filters must leave those columns out.
type Schema struct {
	RequestStatus         bool // requests.status
	NotificationRequestID bool // notifications.request_id
	OfferPricing          bool // offers.budget and offers.price
}

// FullSchema is the schema produced by AutoMigrate.
var FullSchema = Schema{RequestStatus: true, NotificationRequestID: true, OfferPricing: true}

// DetectSchema inspects the live tables once at startup.
func DetectSchema(db *gorm.DB) Schema {
	m := db.Migrator()
	return Schema{
		RequestStatus:         m.HasColumn(&domain.Request{}, "status"),
		NotificationRequestID: m.HasColumn(&domain.Notification{}, "request_id"),
		OfferPricing:          m.HasColumn(&domain.Offer{}, "budget") && m.HasColumn(&domain.Offer{}, "price"),
	}
}

func (s Schema) requestOmit() []string {
	if s.RequestStatus {
		return nil
	}
	return []string{"Status"}
}

func (s Schema) offerOmit() []string {
	if s.OfferPricing {
		return nil
	}
	return []string{"Budget", "Price"}
}

func (s Schema) notificationOmit() []string {
	if s.NotificationRequestID {
		return nil
	}
	return []string{"RequestID"}
}

func omit(db *gorm.DB, cols []string) *gorm.DB {
	if len(cols) == 0 {
		return db
	}
	return db.Omit(cols...)
}
