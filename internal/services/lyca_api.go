package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Ananth-NQI/lycapay-backend/internal/config"
	"github.com/Ananth-NQI/lycapay-backend/internal/logging"
	"github.com/Ananth-NQI/lycapay-backend/internal/models"
)

// Reseller API endpoints
const (
	endpointWalletBalance     = "/check_reseller_float_wallet_balance/"
	endpointSubscriptionInfo  = "/get_subscription_info/"
	endpointBundles           = "/get_float_enabled_plans/FloatBundle"
	endpointPurchaseBundle    = "/efloat_reseller_request_direct_v1/"
	endpointPurchaseAirtime   = "/reseller_request_ebalance_direct_v1/"
	endpointTransactionStatus = "/check_ebalance_transaction_status/"
)

const statusSuccess = "SUCCESS"

// ResellerAPI is the set of reseller operations the bot depends on.
type ResellerAPI interface {
	GetWalletBalance(ctx context.Context) (*WalletBalance, error)
	GetSubscriptionInfo(ctx context.Context, subscriptionID string) (*SubscriberInfo, error)
	GetBundles(ctx context.Context) ([]models.Plan, error)
	PurchaseBundle(ctx context.Context, subscriptionID, bundleToken, transactionID string) (*PurchaseResult, error)
	PurchaseAirtime(ctx context.Context, subscriptionID string, amount int64, transactionID string) (*PurchaseResult, error)
	CheckTransactionStatus(ctx context.Context, transactionID, subscriptionID string) (*TransactionStatusResult, error)
}

// ResponseCode accepts the provider code as either a JSON number or a string.
type ResponseCode string

func (c *ResponseCode) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*c = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*c = ResponseCode(NormalizeCode(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("response code: %w", err)
	}
	*c = ResponseCode(NormalizeCode(n.String()))
	return nil
}

// envelope is the part every reseller response shares.
type envelope struct {
	Status       string       `json:"status"`
	ResponseCode ResponseCode `json:"responseCode"`
	Message      string       `json:"message"`
}

// WalletBalance is the reseller float wallet.
type WalletBalance struct {
	Balance  float64 `json:"balance"`
	Currency string  `json:"currency"`
}

// SubscriberInfo is what the provider knows about a number.
type SubscriberInfo struct {
	SubscriptionID    string `json:"subscriptionId"`
	FirstName         string `json:"subscriberName"`
	LastName          string `json:"subscriberSurname"`
	SubscriptionState string `json:"subscriptionStatus"`
}

// FullName joins first and last name.
func (s *SubscriberInfo) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// PurchaseResult is returned by bundle and airtime purchases.
type PurchaseResult struct {
	ResponseCode          ResponseCode `json:"responseCode"`
	TransactionID         string       `json:"transactionId"`
	ProviderTransactionID string       `json:"providerTransactionId"`
	ReferenceID           string       `json:"referenceId"`
}

// ProviderReference returns the provider-side identifier, if one was sent.
func (p *PurchaseResult) ProviderReference() string {
	if p.ProviderTransactionID != "" {
		return p.ProviderTransactionID
	}
	return p.ReferenceID
}

// Provider transaction states
const (
	ProviderStatusSuccess = "SUCCESS"
	ProviderStatusFailed  = "FAILED"
	ProviderStatusPending = "PENDING"
)

// TransactionStatusResult is the provider's view of an earlier purchase.
type TransactionStatusResult struct {
	TransactionID         string       `json:"transactionId"`
	TransactionStatus     string       `json:"transactionStatus"`
	ProviderTransactionID string       `json:"providerTransactionId"`
	FailureCode           ResponseCode `json:"failureCode"`
}

// LycaClient talks to the Lyca reseller API over HTTP.
type LycaClient struct {
	baseURL     string
	apiKey      string
	httpClient  *http.Client
	maxAttempts int
	retryDelay  time.Duration
	log         *logrus.Entry
}

// NewLycaClient builds a client from the reseller settings.
func NewLycaClient(cfg config.LycaConfig) *LycaClient {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &LycaClient{
		baseURL:     strings.TrimRight(cfg.BaseURL(), "/"),
		apiKey:      cfg.APIKey,
		httpClient:  &http.Client{Timeout: timeout},
		maxAttempts: attempts,
		retryDelay:  cfg.RetryDelay,
		log:         logging.WithComponent("lyca_api"),
	}
}

// call sends one logical request, retrying transport failures and the
// technical-error code. Other provider rejections are returned at once.
func (c *LycaClient) call(ctx context.Context, method, endpoint string, payload interface{}) ([]byte, error) {
	url := c.baseURL + endpoint

	var body []byte
	if payload != nil {
		var err error
		if body, err = json.Marshal(payload); err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", endpoint, err)
		}
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		if attempt > 1 {
			if err := c.wait(ctx); err != nil {
				return nil, &TransportError{Endpoint: endpoint, Attempts: attempt - 1, Err: err}
			}
		}

		raw, status, err := c.do(ctx, method, url, body)
		entry := c.log.WithFields(logrus.Fields{
			"url":      url,
			"method":   method,
			"httpCode": status,
			"attempt":  attempt,
		})
		if err == nil {
			entry = entry.WithField("response", truncate(string(raw), 500))
		}
		entry.Info("API Request")

		if err != nil || status != http.StatusOK || len(raw) == 0 {
			if err == nil {
				err = fmt.Errorf("unexpected HTTP status %d", status)
			}
			entry.WithError(err).Warn("HTTP Error")
			lastErr = err
			continue
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			return nil, &APIError{Code: "", Message: TranslateErrorCode("")}
		}
		if env.Status == statusSuccess {
			return raw, nil
		}

		code := string(env.ResponseCode)
		apiErr := &APIError{Code: code, Message: TranslateErrorCode(code)}
		if IsRetryableCode(code) {
			entry.WithField("code", code).Warn("Technical error from reseller, retrying")
			lastErr = apiErr
			continue
		}
		return nil, apiErr
	}

	return nil, &TransportError{Endpoint: endpoint, Attempts: c.maxAttempts, Err: lastErr}
}

func (c *LycaClient) do(ctx context.Context, method, url string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	req.Header.Set("API_KEY", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return raw, resp.StatusCode, nil
}

func (c *LycaClient) wait(ctx context.Context) error {
	if c.retryDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(c.retryDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// GetWalletBalance returns the reseller float wallet balance.
func (c *LycaClient) GetWalletBalance(ctx context.Context) (*WalletBalance, error) {
	raw, err := c.call(ctx, http.MethodGet, endpointWalletBalance, nil)
	if err != nil {
		return nil, err
	}
	var out WalletBalance
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode wallet balance: %w", err)
	}
	return &out, nil
}

// GetSubscriptionInfo looks up the subscriber behind a number.
func (c *LycaClient) GetSubscriptionInfo(ctx context.Context, subscriptionID string) (*SubscriberInfo, error) {
	raw, err := c.call(ctx, http.MethodGet, endpointSubscriptionInfo+subscriptionID, nil)
	if err != nil {
		return nil, err
	}
	var out SubscriberInfo
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode subscription info: %w", err)
	}
	if out.SubscriptionID == "" {
		out.SubscriptionID = subscriptionID
	}
	return &out, nil
}

// GetBundles lists the bundles purchasable from the float wallet.
func (c *LycaClient) GetBundles(ctx context.Context) ([]models.Plan, error) {
	raw, err := c.call(ctx, http.MethodGet, endpointBundles, nil)
	if err != nil {
		return nil, err
	}
	var out struct {
		Data  []models.Plan `json:"data"`
		Plans []models.Plan `json:"plans"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode bundles: %w", err)
	}
	if len(out.Data) > 0 {
		return out.Data, nil
	}
	return out.Plans, nil
}

// PurchaseBundle buys a bundle for a number under the given transaction id.
func (c *LycaClient) PurchaseBundle(ctx context.Context, subscriptionID, bundleToken, transactionID string) (*PurchaseResult, error) {
	payload := map[string]interface{}{
		"subscriptionId":     subscriptionID,
		"immediateRecharge":  false,
		"transactionId":      transactionID,
		"serviceBundleToken": bundleToken,
	}
	return c.purchase(ctx, endpointPurchaseBundle, payload)
}

// PurchaseAirtime tops up a number with the given amount.
func (c *LycaClient) PurchaseAirtime(ctx context.Context, subscriptionID string, amount int64, transactionID string) (*PurchaseResult, error) {
	payload := map[string]interface{}{
		"ebalanceAmount":    amount,
		"subscriptionId":    subscriptionID,
		"immediateRecharge": false,
		"transactionId":     transactionID,
	}
	return c.purchase(ctx, endpointPurchaseAirtime, payload)
}

func (c *LycaClient) purchase(ctx context.Context, endpoint string, payload map[string]interface{}) (*PurchaseResult, error) {
	raw, err := c.call(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return nil, err
	}
	var out PurchaseResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode purchase result: %w", err)
	}
	return &out, nil
}

// CheckTransactionStatus asks the provider what happened to an earlier purchase.
func (c *LycaClient) CheckTransactionStatus(ctx context.Context, transactionID, subscriptionID string) (*TransactionStatusResult, error) {
	endpoint := endpointTransactionStatus + transactionID + "/" + subscriptionID
	raw, err := c.call(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var out TransactionStatusResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode transaction status: %w", err)
	}
	out.TransactionStatus = strings.ToUpper(strings.TrimSpace(out.TransactionStatus))
	return &out, nil
}
