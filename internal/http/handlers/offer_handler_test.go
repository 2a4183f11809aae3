package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/thaihand/carry-backend/internal/services"
)

func TestRatesField_Unmarshal(t *testing.T) {
	cases := []struct {
		name, in, want string
		set, err       bool
	}{
		{"string", `"[{\"weight\":\"5kg\",\"price\":\"300\"}]"`, `[{"weight":"5kg","price":"300"}]`, true, false},
		{"array", `[{"weight":5,"price":300}]`, `[{"weight":"5","price":"300"}]`, true, false},
		{"null", `null`, ``, false, false},
		{"number", `42`, ``, true, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var r RatesField
			err := json.Unmarshal([]byte(tc.in), &r)
			if (err != nil) != tc.err {
				t.Fatalf("err=%v", err)
			}
			if tc.err {
				return
			}
			if r.Text != tc.want || r.Set != tc.set {
				t.Fatalf("got %+v", r)
			}
		})
	}
}

func TestOffers_CRUDAndOwnership(t *testing.T) {
	e := newEnv(t)
	_, ownerTok := e.user(t, "carrier", "carrier@example.com")
	_, otherTok := e.user(t, "other", "other@example.com")

	w := e.do(t, http.MethodPost, "/offers", ownerTok, map[string]any{
		"route_from": "Tokyo",
		"route_to":   "Bangkok",
		"rates":      []map[string]any{{"weight": "5kg", "price": "300"}, {"weight": "12kg", "price": "600"}},
		"price":      200,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: status=%d body=%s", w.Code, w.Body.String())
	}
	created := decode[map[string]any](t, w)
	if created["rates"] != `[{"weight":"5kg","price":"300"},{"weight":"12kg","price":"600"}]` {
		t.Fatalf("rates should round-trip as text, got %v", created["rates"])
	}
	id := int(created["id"].(float64))

	// Listing projection.
	w = e.do(t, http.MethodGet, "/offers", "", nil)
	list := decode[[]services.OfferListing](t, w)
	if len(list) != 1 || list[0].MaxWeight != 12 || list[0].UserName != "carrier" || len(list[0].Rates) != 2 {
		t.Fatalf("unexpected listing: %+v", list)
	}

	if w := e.do(t, http.MethodGet, "/offers/999", "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("missing: status=%d", w.Code)
	}
	if w := e.do(t, http.MethodGet, "/offers/abc", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("bad id: status=%d", w.Code)
	}

	path := fmt.Sprintf("/offers/%d", id)
	if w := e.do(t, http.MethodPut, path, otherTok, map[string]any{"description": "mine now"}); w.Code != http.StatusForbidden {
		t.Fatalf("foreign update: status=%d", w.Code)
	}
	w = e.do(t, http.MethodPut, path, ownerTok, map[string]any{"description": "snacks only", "rates": `[]`})
	if w.Code != http.StatusOK {
		t.Fatalf("update: status=%d body=%s", w.Code, w.Body.String())
	}
	updated := decode[OfferResponse](t, w)
	if updated.Description != "snacks only" || updated.Rates != "[]" || updated.RouteFrom != "Tokyo" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	if w := e.do(t, http.MethodDelete, path, otherTok, nil); w.Code != http.StatusForbidden {
		t.Fatalf("foreign delete: status=%d", w.Code)
	}
	w = e.do(t, http.MethodDelete, path, ownerTok, nil)
	if w.Code != http.StatusOK || !decode[OKResponse](t, w).OK {
		t.Fatalf("delete: status=%d body=%s", w.Code, w.Body.String())
	}
	if w := e.do(t, http.MethodGet, path, "", nil); w.Code != http.StatusNotFound {
		t.Fatalf("after delete: status=%d", w.Code)
	}
}

func TestOffers_CreateValidation(t *testing.T) {
	e := newEnv(t)
	_, tok := e.user(t, "carrier", "carrier@example.com")

	w := e.do(t, http.MethodPost, "/offers", tok, map[string]any{"route_to": "Bangkok"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", w.Code)
	}
	if er := decode[ErrorResponse](t, w); len(er.Details) != 1 || er.Details[0].Field != "route_from" {
		t.Fatalf("details: %+v", er.Details)
	}

	if w := e.do(t, http.MethodPost, "/offers", tok, map[string]any{"route_from": "a", "route_to": "b", "rates": 5}); w.Code != http.StatusBadRequest {
		t.Fatalf("numeric rates: status=%d", w.Code)
	}
	if w := e.do(t, http.MethodPost, "/offers", "", map[string]any{"route_from": "a", "route_to": "b"}); w.Code != http.StatusUnauthorized {
		t.Fatalf("anonymous: status=%d", w.Code)
	}
}

func TestMarketplaceSearch(t *testing.T) {
	e := newEnv(t)
	_, tok := e.user(t, "carrier", "carrier@example.com")
	for _, o := range []map[string]any{
		{"route_from": "Tokyo", "route_to": "Bangkok", "item_types": "snacks cosmetics"},
		{"route_from": "Seoul", "route_to": "Bangkok", "item_types": "clothes"},
		{"route_from": "Paris", "route_to": "Phuket", "item_types": "wine"},
	} {
		if w := e.do(t, http.MethodPost, "/offers", tok, o); w.Code != http.StatusCreated {
			t.Fatalf("seed: %d %s", w.Code, w.Body.String())
		}
	}

	w := e.do(t, http.MethodGet, "/marketplace?q=tokyo+snacks&limit=5", "", nil)
	hits := decode[[]services.SearchHit](t, w)
	if len(hits) == 0 || hits[0].RouteFrom != "Tokyo" {
		t.Fatalf("unexpected hits: %+v", hits)
	}
	for _, h := range hits {
		if h.RouteFrom == "Paris" {
			t.Fatalf("unrelated offer ranked: %+v", h)
		}
	}

	w = e.do(t, http.MethodGet, "/marketplace?q=bangkok&limit=1", "", nil)
	if hits := decode[[]services.SearchHit](t, w); len(hits) != 1 {
		t.Fatalf("limit ignored: %d hits", len(hits))
	}
}

func TestMyCarryOrders(t *testing.T) {
	e := newEnv(t)
	owner, tok := e.user(t, "carrier", "carrier@example.com")
	other, _ := e.user(t, "other", "other@example.com")

	w := e.do(t, http.MethodPost, "/offers", tok, map[string]any{"route_from": "Tokyo", "route_to": "Bangkok"})
	id := decode[OfferResponse](t, w).ID

	w = e.do(t, http.MethodGet, "/my-carry-orders?email=carrier@example.com", "", nil)
	if got := decode[[]OfferResponse](t, w); len(got) != 1 || got[0].ID != id {
		t.Fatalf("unexpected: %+v", got)
	}
	w = e.do(t, http.MethodGet, "/my-carry-orders?email=nobody@example.com", "", nil)
	if got := decode[[]OfferResponse](t, w); len(got) != 0 {
		t.Fatalf("unknown email should be empty: %+v", got)
	}
	if w := e.do(t, http.MethodGet, "/my-carry-orders", "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing email: status=%d", w.Code)
	}

	w = e.do(t, http.MethodGet, fmt.Sprintf("/my-carry-orders/%d?user_id=%d", id, owner.ID), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("detail: status=%d", w.Code)
	}
	w = e.do(t, http.MethodGet, fmt.Sprintf("/my-carry-orders/%d?user_id=%d", id, other.ID), "", nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("foreign detail: status=%d", w.Code)
	}
	if w := e.do(t, http.MethodGet, fmt.Sprintf("/my-carry-orders/%d", id), "", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("missing user_id: status=%d", w.Code)
	}
}
