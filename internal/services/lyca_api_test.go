package services

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ananth-NQI/lycapay-backend/internal/config"
)

func newTestLycaClient(t *testing.T, handler http.HandlerFunc) (*LycaClient, *int32) {
	t.Helper()
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client := NewLycaClient(config.LycaConfig{
		Environment: config.LycaEnvTest,
		TestURL:     srv.URL,
		APIKey:      "secret-key",
		MaxAttempts: 3,
		RetryDelay:  0,
	})
	return client, &hits
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func TestLycaClient_SendsKeyAndDecodesBundles(t *testing.T) {
	client, _ := newTestLycaClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("API_KEY"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/get_float_enabled_plans/FloatBundle", r.URL.Path)
		writeJSON(w, map[string]interface{}{
			"status":       "SUCCESS",
			"responseCode": 1,
			"data": []map[string]interface{}{
				{"serviceBundleName": "Daily 1GB", "serviceBundlePrice": 1000, "serviceBundleDescription": "1GB for 24 hours", "serviceBundleToken": "tok-1"},
				{"serviceBundleName": "Weekly 5GB", "serviceBundlePrice": 5000, "serviceBundleDescription": "5GB for 7 days", "serviceBundleToken": "tok-2"},
			},
		})
	})

	plans, err := client.GetBundles(context.Background())
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Daily 1GB", plans[0].Name)
	assert.Equal(t, float64(5000), plans[1].Price)
	assert.Equal(t, "tok-2", plans[1].Token)
}

func TestLycaClient_RetriesTechnicalErrorThenSucceeds(t *testing.T) {
	var calls int32
	client, hits := newTestLycaClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) <= 2 {
			writeJSON(w, map[string]interface{}{"status": "FAILURE", "responseCode": "-10017"})
			return
		}
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "LYCA_1_abc", body["transactionId"])
		assert.Equal(t, float64(2000), body["ebalanceAmount"])
		assert.Equal(t, false, body["immediateRecharge"])
		writeJSON(w, map[string]interface{}{"status": "SUCCESS", "responseCode": 1, "providerTransactionId": "AG-77"})
	})

	res, err := client.PurchaseAirtime(context.Background(), "256772123456", 2000, "LYCA_1_abc")
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	assert.Equal(t, "AG-77", res.ProviderReference())
	assert.Equal(t, ResponseCode("1"), res.ResponseCode)
}

func TestLycaClient_BusinessErrorNotRetried(t *testing.T) {
	client, hits := newTestLycaClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"status": "FAILURE", "responseCode": -10030})
	})
	// a retry would block the test on this delay
	client.retryDelay = time.Minute

	_, err := client.PurchaseBundle(context.Background(), "256772123456", "tok-1", "LYCA_1_abc")
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "-10030", apiErr.Code)
	assert.Equal(t, TranslateErrorCode("-10030"), apiErr.Message)
	assert.Equal(t, int32(1), atomic.LoadInt32(hits))
}

func TestLycaClient_HTTPFailureExhaustsAttempts(t *testing.T) {
	client, hits := newTestLycaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.GetWalletBalance(context.Background())
	require.Error(t, err)

	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, "/check_reseller_float_wallet_balance/", transportErr.Endpoint)
	assert.Equal(t, 3, transportErr.Attempts)
	assert.Contains(t, err.Error(), "after 3 attempts")
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))
	assert.Equal(t, MsgTechnicalDifficulty, FailureReason(err))
}

func TestLycaClient_TechnicalErrorEveryTime(t *testing.T) {
	client, hits := newTestLycaClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]interface{}{"status": "FAILURE", "responseCode": "-10017"})
	})

	_, err := client.GetSubscriptionInfo(context.Background(), "256772123456")
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.Equal(t, int32(3), atomic.LoadInt32(hits))

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, CodeTechnicalError, apiErr.Code)
}

func TestLycaClient_SubscriptionAndStatus(t *testing.T) {
	client, _ := newTestLycaClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_subscription_info/256772123456":
			writeJSON(w, map[string]interface{}{"status": "SUCCESS", "subscriberName": "Jane", "subscriberSurname": "Doe"})
		case "/check_ebalance_transaction_status/LYCA_1_abc/256772123456":
			writeJSON(w, map[string]interface{}{"status": "SUCCESS", "transactionStatus": "failed", "failureCode": -10030})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	info, err := client.GetSubscriptionInfo(context.Background(), "256772123456")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", info.FullName())
	assert.Equal(t, "256772123456", info.SubscriptionID)

	st, err := client.CheckTransactionStatus(context.Background(), "LYCA_1_abc", "256772123456")
	require.NoError(t, err)
	assert.Equal(t, ProviderStatusFailed, st.TransactionStatus)
	assert.Equal(t, ResponseCode("-10030"), st.FailureCode)
}

func TestLycaClient_ContextCancelledStopsRetries(t *testing.T) {
	client, hits := newTestLycaClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.GetWalletBalance(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(0), atomic.LoadInt32(hits))
}

func TestTranslateErrorCode(t *testing.T) {
	assert.Contains(t, TranslateErrorCode("-10010"), "maximum number of recharges")
	assert.Equal(t, TranslateErrorCode("-10017"), TranslateErrorCode(" -10017 "))
	assert.Equal(t, TranslateErrorCode("-10030"), TranslateErrorCode("-10030.0"))
	assert.Equal(t, MsgUnexpectedError, TranslateErrorCode("-99999"))
	assert.Equal(t, MsgUnexpectedError, TranslateErrorCode(""))
	for code, msg := range errorCodeMessages {
		assert.NotContains(t, msg, code, "message for %s must not leak the raw code", code)
	}
	assert.True(t, IsRetryableCode("-10017"))
	assert.False(t, IsRetryableCode("-10030"))
}
