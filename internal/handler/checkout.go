package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"

	"github.com/evercart/checkout/internal/domain/cart"
	"github.com/evercart/checkout/internal/domain/order"
)

// checkoutRequest is the POST /checkout body. Client-sent prices are never
// trusted; unit prices are looked up server-side.
type checkoutRequest struct {
	Cart            []checkoutItem `json:"cart"`
	ShippingAddress order.Address  `json:"shippingAddress"`
	DiscountCode    string         `json:"discountCode,omitempty"`
	IdempotencyKey  string         `json:"idempotencyKey,omitempty"`
}

type checkoutItem struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
	Size      string `json:"size,omitempty"`
	Color     string `json:"color,omitempty"`
}

type checkoutResponse struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

func (h *Handler) checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body is not valid JSON")
		return
	}
	if len(req.Cart) == 0 {
		writeError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
		return
	}
	if msg, ok := validateAddress(req.ShippingAddress); !ok {
		writeError(w, http.StatusBadRequest, "invalid_address", msg)
		return
	}

	snapshot, err := h.buildSnapshot(r, req.Cart)
	if err != nil {
		h.writeSnapshotError(w, err)
		return
	}

	res, err := h.orchestrator.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		Snapshot:        snapshot,
		ShippingAddress: req.ShippingAddress,
		DiscountCode:    req.DiscountCode,
		UserID:          r.Header.Get("X-User-ID"),
		IdempotencyKey:  req.IdempotencyKey,
	})
	if err != nil {
		writeCheckoutError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, checkoutResponse{
		OrderID: res.OrderID,
		Status:  string(res.Status),
	})
}

// errUnknownProduct marks cart lines referencing products that do not exist
// or are not published.
var errUnknownProduct = errors.New("unknown product")

// buildSnapshot resolves authoritative unit prices for the submitted lines.
func (h *Handler) buildSnapshot(r *http.Request, items []checkoutItem) (*cart.Snapshot, error) {
	ids := make([]string, len(items))
	for i, it := range items {
		ids[i] = it.ProductID
	}

	products, err := h.products.GetByIDs(r.Context(), ids)
	if err != nil {
		return nil, err
	}
	priced := make(map[string]int, len(products))
	for i := range products {
		priced[products[i].ID] = i
	}

	lines := make([]cart.Line, len(items))
	for i, it := range items {
		idx, ok := priced[it.ProductID]
		if !ok {
			return nil, errors.Wrapf(errUnknownProduct, "product %s", it.ProductID)
		}
		lines[i] = cart.Line{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: products[idx].EffectivePrice(),
			Size:      it.Size,
			Color:     it.Color,
		}
	}
	return cart.NewSnapshot(lines)
}

func (h *Handler) writeSnapshotError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errUnknownProduct):
		writeError(w, http.StatusUnprocessableEntity, "product_not_found", err.Error())
	case errors.Is(err, cart.ErrEmptyCart):
		writeError(w, http.StatusBadRequest, "empty_cart", "cart is empty")
	case errors.Is(err, cart.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "invalid_quantity", "quantity must be greater than 0")
	default:
		writeError(w, http.StatusInternalServerError, "internal", "something went wrong")
	}
}

func validateAddress(a order.Address) (string, bool) {
	switch {
	case a.Name == "":
		return "shipping address requires a name", false
	case a.Line1 == "":
		return "shipping address requires an address line", false
	case a.City == "":
		return "shipping address requires a city", false
	case a.PostalCode == "":
		return "shipping address requires a postal code", false
	case a.Country == "":
		return "shipping address requires a country", false
	}
	return "", true
}
