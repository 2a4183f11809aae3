package handlers

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/thaihand/carry-backend/internal/domain"
)

func TestRequests_CreateWithOfferEnrichment(t *testing.T) {
	e := newEnv(t)
	carrier, carrierTok := e.user(t, "carrier", "carrier@example.com")
	_, buyerTok := e.user(t, "buyer", "buyer@example.com")

	w := e.do(t, http.MethodPost, "/offers", carrierTok, map[string]any{
		"route_from": "Tokyo", "route_to": "Bangkok", "description": "snacks", "price": 200,
	})
	offerID := decode[OfferResponse](t, w).ID

	w = e.do(t, http.MethodPost, "/requests", buyerTok, map[string]any{
		"title":    "KitKat",
		"offer_id": offerID,
		// Carrier fields from the client are ignored.
		"carrier_name": "spoofed",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", w.Code, w.Body.String())
	}
	r := decode[domain.Request](t, w)
	if r.FromLocation != "Tokyo" || r.ToLocation != "Bangkok" || r.Description != "snacks" {
		t.Fatalf("locations/description not backfilled: %+v", r)
	}
	if r.Budget == nil || *r.Budget != 200 {
		t.Fatalf("budget should come from offer price, got %v", r.Budget)
	}
	if r.CarrierName == nil || *r.CarrierName != "carrier" || r.CarrierEmail == nil || *r.CarrierEmail != "carrier@example.com" {
		t.Fatalf("carrier snapshot wrong: %+v", r)
	}
	if r.Status != "pending" || r.Source != domain.SourceMarketplace {
		t.Fatalf("defaults wrong: status=%q source=%q", r.Status, r.Source)
	}

	// The offer owner was notified, and sees the buyer as the other party.
	w = e.do(t, http.MethodGet, "/notifications?user_email=carrier@example.com", "", nil)
	notes := decode[[]map[string]any](t, w)
	if len(notes) != 1 || notes[0]["sender_email"] != "buyer@example.com" {
		t.Fatalf("unexpected notifications: %+v", notes)
	}
	if int(notes[0]["user_id"].(float64)) != carrier.ID {
		t.Fatalf("notification addressed to wrong user: %+v", notes[0])
	}

	w = e.do(t, http.MethodGet, fmt.Sprintf("/offers/%d/requests", offerID), "", nil)
	if got := decode[[]domain.Request](t, w); len(got) != 1 || got[0].ID != r.ID {
		t.Fatalf("requests for offer: %+v", got)
	}
}

func TestRequests_MissingOfferSkipsEnrichment(t *testing.T) {
	e := newEnv(t)
	_, tok := e.user(t, "buyer", "buyer@example.com")

	w := e.do(t, http.MethodPost, "/requests", tok, map[string]any{"title": "x", "offer_id": 4242, "from_location": "Osaka"})
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	r := decode[domain.Request](t, w)
	if r.FromLocation != "Osaka" || r.Budget == nil || *r.Budget != 0 || r.CarrierName != nil {
		t.Fatalf("unexpected: %+v", r)
	}
}

func TestRequests_IdempotencyKeyReplays(t *testing.T) {
	e := newEnv(t)
	_, tok := e.user(t, "buyer", "buyer@example.com")
	body := map[string]any{"title": "once"}

	w1 := e.do(t, http.MethodPost, "/requests", tok, body, "Idempotency-Key", "key-1")
	if w1.Code != http.StatusCreated {
		t.Fatalf("first: status=%d body=%s", w1.Code, w1.Body.String())
	}
	w2 := e.do(t, http.MethodPost, "/requests", tok, body, "Idempotency-Key", "key-1")
	if w2.Code != http.StatusOK || w2.Header().Get("Idempotent-Replay") != "true" {
		t.Fatalf("replay: status=%d hdr=%v", w2.Code, w2.Header())
	}
	if decode[domain.Request](t, w1).ID != decode[domain.Request](t, w2).ID {
		t.Fatalf("replay returned a different request")
	}

	if w := e.do(t, http.MethodPost, "/requests", tok, body, "Idempotency-Key", "bad key!"); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid key: status=%d", w.Code)
	}

	w := e.do(t, http.MethodGet, "/requests", "", nil)
	if got := decode[[]domain.Request](t, w); len(got) != 1 {
		t.Fatalf("expected one stored request, got %d", len(got))
	}
}

func TestRequests_UpdateDeleteOwnership(t *testing.T) {
	e := newEnv(t)
	_, ownerTok := e.user(t, "buyer", "buyer@example.com")
	_, otherTok := e.user(t, "other", "other@example.com")

	w := e.do(t, http.MethodPost, "/requests", ownerTok, map[string]any{"title": "t", "budget": 50})
	id := decode[domain.Request](t, w).ID
	path := fmt.Sprintf("/requests/%d", id)

	if w := e.do(t, http.MethodPut, path, otherTok, map[string]any{"title": "stolen"}); w.Code != http.StatusForbidden {
		t.Fatalf("foreign update: status=%d", w.Code)
	}
	w = e.do(t, http.MethodPut, path, ownerTok, map[string]any{"title": "renamed", "budget": 75})
	if w.Code != http.StatusOK {
		t.Fatalf("update: status=%d body=%s", w.Code, w.Body.String())
	}
	if r := decode[domain.Request](t, w); r.Title != "renamed" || *r.Budget != 75 {
		t.Fatalf("unexpected: %+v", r)
	}
	if w := e.do(t, http.MethodPut, path, ownerTok, map[string]any{"budget": -1}); w.Code != http.StatusBadRequest {
		t.Fatalf("negative budget: status=%d", w.Code)
	}

	if w := e.do(t, http.MethodDelete, path, otherTok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign delete: status=%d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, path, ownerTok, nil); w.Code != http.StatusOK {
		t.Fatalf("delete: status=%d", w.Code)
	}
	if w := e.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("after delete: status=%d", w.Code)
	}
	if w := e.do(t, http.MethodDelete, path, ownerTok, nil); w.Code != http.StatusNotFound {
		t.Fatalf("double delete: status=%d", w.Code)
	}
}

func TestRequests_StatusTransitions(t *testing.T) {
	e := newEnv(t)
	_, carrierTok := e.user(t, "carrier", "carrier@example.com")
	_, buyerTok := e.user(t, "buyer", "buyer@example.com")
	_, strangerTok := e.user(t, "stranger", "stranger@example.com")

	w := e.do(t, http.MethodPost, "/offers", carrierTok, map[string]any{"route_from": "a", "route_to": "b"})
	offerID := decode[OfferResponse](t, w).ID
	w = e.do(t, http.MethodPost, "/requests", buyerTok, map[string]any{"title": "t", "offer_id": offerID})
	path := fmt.Sprintf("/requests/%d/status", decode[domain.Request](t, w).ID)

	steps := []struct {
		name   string
		tok    string
		status string
		code   int
		want   string
	}{
		{"stranger", strangerTok, "approved", http.StatusForbidden, ""},
		{"unknown value", carrierTok, "shipped", http.StatusBadRequest, ""},
		{"skip ahead", carrierTok, "completed", http.StatusConflict, ""},
		{"approve via thai label", carrierTok, "อนุมัติ", http.StatusOK, "approved"},
		{"same again is a no-op", carrierTok, "approved", http.StatusOK, "approved"},
		{"back to pending", buyerTok, "pending", http.StatusConflict, ""},
		{"complete", buyerTok, "completed", http.StatusOK, "completed"},
	}
	for _, s := range steps {
		t.Run(s.name, func(t *testing.T) {
			w := e.do(t, http.MethodPatch, path, s.tok, UpdateStatusRequest{Status: s.status})
			if w.Code != s.code {
				t.Fatalf("status=%d want %d body=%s", w.Code, s.code, w.Body.String())
			}
			if s.want != "" {
				if got := decode[StatusResponse](t, w); !got.OK || got.Status != s.want {
					t.Fatalf("unexpected: %+v", got)
				}
			}
		})
	}

	if w := e.do(t, http.MethodPatch, "/requests/9999/status", carrierTok, UpdateStatusRequest{Status: "approved"}); w.Code != http.StatusNotFound {
		t.Fatalf("missing request: status=%d", w.Code)
	}
}

func TestRequests_ListPaginationAndMyOrders(t *testing.T) {
	e := newEnv(t)
	_, tok := e.user(t, "buyer", "buyer@example.com")
	for i := 0; i < 3; i++ {
		e.do(t, http.MethodPost, "/requests", tok, map[string]any{"title": fmt.Sprintf("r%d", i)})
	}
	// A row written without text fields, as older clients did.
	if err := e.db.Create(&domain.Request{UserID: 1, Title: " ", Budget: ptr(0)}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	cases := []struct {
		query string
		want  int
	}{
		{"", 4},
		{"?limit=0", 1},
		{"?limit=2", 2},
		{"?skip=3", 1},
		{"?skip=-5&limit=abc", 4},
	}
	for _, tc := range cases {
		w := e.do(t, http.MethodGet, "/requests"+tc.query, "", nil)
		if got := decode[[]domain.Request](t, w); len(got) != tc.want {
			t.Fatalf("%q: got %d want %d", tc.query, len(got), tc.want)
		}
	}

	w := e.do(t, http.MethodGet, "/my-orders?email=buyer@example.com", "", nil)
	mine := decode[[]domain.Request](t, w)
	if len(mine) != 4 {
		t.Fatalf("my-orders: %d", len(mine))
	}
	var legacy *domain.Request
	for i := range mine {
		if mine[i].FromLocation == "ไม่ระบุ" && mine[i].Title == "รายการฝากหิ้ว" {
			legacy = &mine[i]
		}
	}
	if legacy == nil || legacy.Budget != nil {
		t.Fatalf("placeholders not applied: %+v", mine)
	}
	if w := e.do(t, http.MethodGet, "/my-orders", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing email: status=%d", w.Code)
	}
}
