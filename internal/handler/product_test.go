package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func getPath(t *testing.T, h *Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	noAuth := func(next http.Handler) http.Handler { return next }
	h.Routes(noAuth).ServeHTTP(rec, req)
	return rec
}

func TestListProducts(t *testing.T) {
	h, _ := testServer(t, &stubLedger{}, &stubGateway{})

	rec := getPath(t, h, "/products")
	require.Equal(t, http.StatusOK, rec.Code)

	var out []productResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Len(t, out, 2)
}

func TestGetProduct(t *testing.T) {
	h, _ := testServer(t, &stubLedger{}, &stubGateway{})

	rec := getPath(t, h, "/products/hoodie")
	require.Equal(t, http.StatusOK, rec.Code)

	var out productResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	assert.Equal(t, "hoodie", out.ID)
	assert.Equal(t, 64.0, out.Price)
	require.NotNil(t, out.SalePrice)
	assert.Equal(t, 49.0, *out.SalePrice)
	assert.True(t, out.InStock)
}

func TestGetProduct_NotFound(t *testing.T) {
	h, _ := testServer(t, &stubLedger{}, &stubGateway{})

	rec := getPath(t, h, "/products/ghost")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body errorBody
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, "product_not_found", body.Kind)
}
