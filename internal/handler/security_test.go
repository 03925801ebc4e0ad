package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"

	"github.com/evercart/checkout/internal/domain/auth"
)

type stubKeyRepo struct {
	byHash map[string]*auth.APIKeyInfo
}

func (r *stubKeyRepo) FindByHash(_ context.Context, hash string) (*auth.APIKeyInfo, error) {
	info, ok := r.byHash[hash]
	if !ok {
		return nil, errors.New("api key not found")
	}
	return info, nil
}

func TestRequireAPIKey(t *testing.T) {
	pepper := []byte("test-pepper")
	hash := HashAPIKey(pepper, "sk_valid")
	repo := &stubKeyRepo{byHash: map[string]*auth.APIKeyInfo{
		hash: {ID: "k1", KeyHash: hash, Name: "test key"},
	}}

	var reached bool
	protected := RequireAPIKey(repo, pepper)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reached = true
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(set func(*http.Request)) int {
		reached = false
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		set(req)
		rec := httptest.NewRecorder()
		protected.ServeHTTP(rec, req)
		return rec.Code
	}

	t.Run("valid key via X-API-Key", func(t *testing.T) {
		code := do(func(r *http.Request) { r.Header.Set("X-API-Key", "sk_valid") })
		assert.Equal(t, http.StatusNoContent, code)
		assert.True(t, reached)
	})

	t.Run("valid key via bearer token", func(t *testing.T) {
		code := do(func(r *http.Request) { r.Header.Set("Authorization", "Bearer sk_valid") })
		assert.Equal(t, http.StatusNoContent, code)
		assert.True(t, reached)
	})

	t.Run("missing key", func(t *testing.T) {
		code := do(func(_ *http.Request) {})
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.False(t, reached)
	})

	t.Run("unknown key", func(t *testing.T) {
		code := do(func(r *http.Request) { r.Header.Set("X-API-Key", "sk_wrong") })
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.False(t, reached)
	})

	t.Run("wrong pepper produces different hash", func(t *testing.T) {
		other := RequireAPIKey(repo, []byte("other-pepper"))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNoContent)
		}))
		req := httptest.NewRequest(http.MethodPost, "/checkout", nil)
		req.Header.Set("X-API-Key", "sk_valid")
		rec := httptest.NewRecorder()
		other.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
