package promotion_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"isilanlarim/internal/promotion"
)

func TestPYTRGateway_Initiate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payments", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "m-1", body["merchant_id"])
		assert.EqualValues(t, 4500, body["amount"], "amount is sent in kuruş")
		assert.Equal(t, "TRY", body["currency"])

		ret, err := url.Parse(body["return_url"].(string))
		require.NoError(t, err)
		assert.Equal(t, "pay-1", ret.Query().Get("payment_id"))
		assert.Equal(t, "job-1", ret.Query().Get("job_id"))

		_ = json.NewEncoder(w).Encode(map[string]string{"id": "pytr-99", "payment_url": "https://pay.example/x"})
	}))
	defer srv.Close()

	gw := promotion.NewPYTRGateway(srv.URL+"/v1/", "m-1", "secret", time.Second)
	payURL, ref, err := gw.Initiate(context.Background(), promotion.Charge{
		OrderID: "PROMO_1", PaymentID: "pay-1", ListingID: "job-1", Amount: 45, Currency: "TRY",
		ReturnURL: "https://isilanlarim.org/odeme/basarili",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/x", payURL)
	assert.Equal(t, "pytr-99", ref)
}

func TestPYTRGateway_InitiateServerError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	gw := promotion.NewPYTRGateway(srv.URL, "m", "k", time.Second)
	_, _, err := gw.Initiate(context.Background(), promotion.Charge{OrderID: "o", Amount: 25})
	assert.ErrorIs(t, err, promotion.ErrGateway)
	assert.Equal(t, int32(1), calls.Load(), "initiation is never retried")
}

func TestPYTRGateway_StatusRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pytr-99", r.URL.Path)
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "completed"})
	}))
	defer srv.Close()

	gw := promotion.NewPYTRGateway(srv.URL, "m", "k", time.Second)
	st, err := gw.Status(context.Background(), "pytr-99")
	require.NoError(t, err)
	assert.Equal(t, promotion.GatewayCompleted, st)
	assert.Equal(t, int32(2), calls.Load())
}

func TestPYTRGateway_StatusClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		http.Error(w, "unknown payment", http.StatusNotFound)
	}))
	defer srv.Close()

	gw := promotion.NewPYTRGateway(srv.URL, "m", "k", time.Second)
	_, err := gw.Status(context.Background(), "nope")
	assert.ErrorContains(t, err, "status 404")
	assert.Equal(t, int32(1), calls.Load())
}
