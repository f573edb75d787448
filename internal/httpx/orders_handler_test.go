package httpx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/danupranata/go-marketplace-orders/internal/checkout"
)

func newTestServer(t *testing.T) (*httptest.Server, *checkout.MemoryStore) {
	t.Helper()
	store := checkout.NewMemoryStore()
	orch := &checkout.Orchestrator{
		Store:      store,
		Service:    "checkout-test",
		CodePrefix: "MP",
		Log:        zap.NewNop(),
	}
	router := NewRouter()
	h := &OrdersHandler{Orchestrator: orch, Store: store, Log: zap.NewNop()}
	h.Register(router)
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, store
}

func seedLine(store *checkout.MemoryStore, seller int64, name string, price, avail int) int64 {
	return store.AddCartLine(checkout.CartLine{
		UserID: 1, ProductID: seller * 10, SellerID: seller, ProductName: name,
		UnitPriceCents: price, Quantity: 1, AvailableQty: avail,
	})
}

func placeReq(lineQty map[int64]int) PlaceOrderReq {
	req := PlaceOrderReq{
		UserID: 1,
		Shipping: checkout.ShippingInfo{
			FullName: "Dewi Lestari", Street: "Jl. Sudirman 12", City: "Jakarta",
			Zip: "10110", Country: "ID",
		},
		PaymentMethod: "card",
	}
	for id, qty := range lineQty {
		req.Selections = append(req.Selections, Selection{CartLineID: id, Qty: qty})
	}
	return req
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("post %s: %v", url, err)
	}
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	if err := json.NewDecoder(resp.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

func TestPlaceOrderEndpoint(t *testing.T) {
	srv, store := newTestServer(t)
	lineA := seedLine(store, 7, "Leash", 100, 10)
	lineB := seedLine(store, 8, "Bowl", 50, 1)

	resp := postJSON(t, srv.URL+"/orders", placeReq(map[int64]int{lineA: 2, lineB: 1}))
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201, got %d", resp.StatusCode)
	}
	res := decode[checkout.PlacementResult](t, resp)
	if res.TotalCents != 250 {
		t.Fatalf("expected total 250, got %d", res.TotalCents)
	}
	if res.OrderCode == "" {
		t.Fatal("expected an order code")
	}

	// the created order is readable back with its lines and sellers
	getResp, err := http.Get(fmt.Sprintf("%s/orders/%d", srv.URL, res.OrderID))
	if err != nil {
		t.Fatalf("get order: %v", err)
	}
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", getResp.StatusCode)
	}
	order := decode[orderResp](t, getResp)
	if order.Status != string(checkout.StatusInitial) {
		t.Fatalf("expected INITIAL, got %s", order.Status)
	}
	if len(order.Lines) != 2 || len(order.SellerIDs) != 2 {
		t.Fatalf("expected 2 lines / 2 sellers, got %d / %d", len(order.Lines), len(order.SellerIDs))
	}
}

func TestPlaceOrderEmptySelections(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/orders", placeReq(nil))
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestPlaceOrderInsufficientStock(t *testing.T) {
	srv, store := newTestServer(t)
	lineID := seedLine(store, 7, "Aquarium", 900, 2)

	resp := postJSON(t, srv.URL+"/orders", placeReq(map[int64]int{lineID: 5}))
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("expected 409, got %d", resp.StatusCode)
	}
	body := decode[map[string]any](t, resp)
	if body["product_name"] != "Aquarium" {
		t.Fatalf("expected offending product in body, got %v", body)
	}
}

func TestPlaceOrderUnknownLine(t *testing.T) {
	srv, _ := newTestServer(t)

	resp := postJSON(t, srv.URL+"/orders", placeReq(map[int64]int{99: 1}))
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}

func TestOrderLifecycleEndpoints(t *testing.T) {
	srv, store := newTestServer(t)
	lineID := seedLine(store, 7, "Crate", 200, 5)

	resp := postJSON(t, srv.URL+"/orders", placeReq(map[int64]int{lineID: 2}))
	res := decode[checkout.PlacementResult](t, resp)

	statusURL := fmt.Sprintf("%s/orders/%d/status", srv.URL, res.OrderID)

	resp = postJSON(t, statusURL, StatusUpdateReq{Status: string(checkout.StatusConfirmed)})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	// skipping straight to DELIVERED is forbidden
	resp = postJSON(t, statusURL, StatusUpdateReq{Status: string(checkout.StatusDelivered)})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("bad transition: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	cancelURL := fmt.Sprintf("%s/orders/%d/cancel", srv.URL, res.OrderID)
	resp = postJSON(t, cancelURL, struct{}{})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: expected 200, got %d", resp.StatusCode)
	}
	resp.Body.Close()

	l, _ := store.Line(lineID)
	if l.AvailableQty != 5 {
		t.Fatalf("cancel must restore stock, available=%d", l.AvailableQty)
	}

	// cancelling twice is rejected
	resp = postJSON(t, cancelURL, struct{}{})
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("double cancel: expected 409, got %d", resp.StatusCode)
	}
	resp.Body.Close()
}

func TestGetOrderNotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/orders/424242")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
}
