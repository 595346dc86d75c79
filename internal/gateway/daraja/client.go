// Package daraja implements the outbound client for the Daraja mobile-money
// gateway: OAuth token acquisition, STK push collections (buyer -> platform)
// and B2C disbursements (platform -> artisan). The client does not retry;
// retry policy belongs to the caller, which must gate disbursement retries on
// the ledger state.
package daraja

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sokocraft/escrow-service/internal/config"
	"github.com/sokocraft/escrow-service/internal/domain/payment"
)

const (
	tokenPath        = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath      = "/mpesa/stkpush/v1/processrequest"
	b2cPath          = "/mpesa/b2c/v1/paymentrequest"
	timestampLayout  = "20060102150405"
	maxResponseBytes = 1 << 20
)

// Client talks to the Daraja gateway. Safe for concurrent use.
type Client struct {
	httpClient *http.Client
	cfg        *config.DarajaConfig
	logger     *slog.Logger
	now        func() time.Time
}

// NewClient creates a gateway client with an explicit per-request timeout.
// A timeout surfaces as a transport error, treated like any other gateway failure.
func NewClient(logger *slog.Logger, cfg *config.DarajaConfig) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: cfg.HTTPTimeout},
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// CollectionResponse acknowledges an accepted STK push request
type CollectionResponse struct {
	GatewayTransactionID string // CheckoutRequestID, correlates the async callback
}

// DisbursementResponse acknowledges an accepted B2C payout request
type DisbursementResponse struct {
	GatewayTransactionID string // ConversationID
}

// GetAccessToken fetches a bearer credential using the platform's client
// credentials. Tokens are not cached: every operation re-authenticates, and
// callers that add caching must respect the gateway's stated TTL.
func (c *Client) GetAccessToken(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+tokenPath, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(body, &tokenResp); err != nil || tokenResp.AccessToken == "" {
		return "", AuthError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return tokenResp.AccessToken, nil
}

// InitiateCollection submits an STK push asking the buyer's phone to approve
// a payment to the platform shortcode. The returned CheckoutRequestID is the
// outbound reference the eventual callback is correlated against.
func (c *Client) InitiateCollection(ctx context.Context, payerPhone string, amount int64, reference, description string) (*CollectionResponse, error) {
	timestamp := c.timestamp()
	reqBody := map[string]string{
		"BusinessShortCode": c.cfg.ShortCode,
		"Password":          c.password(timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            strconv.FormatInt(payment.MajorUnits(amount), 10),
		"PartyA":            msisdn(payerPhone),
		"PartyB":            c.cfg.ShortCode,
		"PhoneNumber":       msisdn(payerPhone),
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  reference,
		"TransactionDesc":   description,
	}

	var stkResp struct {
		CheckoutRequestID string `json:"CheckoutRequestID"`
		ResponseCode      string `json:"ResponseCode"`
	}
	if err := c.post(ctx, stkPushPath, reqBody, &stkResp); err != nil {
		return nil, err
	}
	if stkResp.CheckoutRequestID == "" {
		return nil, GatewayError{StatusCode: http.StatusOK, Code: stkResp.ResponseCode, RawBody: "response missing CheckoutRequestID"}
	}

	c.logger.Info("Collection request accepted by gateway",
		"checkout_request_id", stkResp.CheckoutRequestID,
		"reference", reference,
	)

	return &CollectionResponse{GatewayTransactionID: stkResp.CheckoutRequestID}, nil
}

// InitiateDisbursement submits a business-initiated payout to the artisan's phone.
func (c *Client) InitiateDisbursement(ctx context.Context, payeePhone string, amount int64, reference, description, occasion string) (*DisbursementResponse, error) {
	reqBody := map[string]string{
		"InitiatorName":      c.cfg.InitiatorName,
		"SecurityCredential": c.cfg.SecurityCredential,
		"CommandID":          "BusinessPayment",
		"Amount":             strconv.FormatInt(payment.MajorUnits(amount), 10),
		"PartyA":             c.cfg.ShortCode,
		"PartyB":             msisdn(payeePhone),
		"Remarks":            description,
		"QueueTimeOutURL":    c.cfg.B2CTimeoutURL,
		"ResultURL":          c.cfg.B2CResultURL,
		"Occasion":           occasion,
	}

	var b2cResp struct {
		ConversationID           string `json:"ConversationID"`
		OriginatorConversationID string `json:"OriginatorConversationID"`
		ResponseCode             string `json:"ResponseCode"`
	}
	if err := c.post(ctx, b2cPath, reqBody, &b2cResp); err != nil {
		return nil, err
	}

	conversationID := b2cResp.ConversationID
	if conversationID == "" {
		conversationID = b2cResp.OriginatorConversationID
	}
	if conversationID == "" {
		return nil, GatewayError{StatusCode: http.StatusOK, Code: b2cResp.ResponseCode, RawBody: "response missing ConversationID"}
	}

	c.logger.Info("Disbursement request accepted by gateway",
		"conversation_id", conversationID,
		"reference", reference,
	)

	return &DisbursementResponse{GatewayTransactionID: conversationID}, nil
}

// post authenticates, submits a signed JSON request and decodes the response.
// Any non-2xx status or undecodable body maps to GatewayError.
func (c *Client) post(ctx context.Context, path string, reqBody, out interface{}) error {
	token, err := c.GetAccessToken(ctx)
	if err != nil {
		return err
	}

	payloadBytes, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("failed to marshal gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(payloadBytes))
	if err != nil {
		return fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return GatewayError{StatusCode: resp.StatusCode, RawBody: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return GatewayError{StatusCode: resp.StatusCode, RawBody: string(body)}
	}

	return nil
}

// password derives the request signature. The timestamp must be generated
// fresh per call because the gateway validates its freshness server-side.
func (c *Client) password(timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(c.cfg.ShortCode + c.cfg.Passkey + timestamp))
}

func (c *Client) timestamp() string {
	return c.now().UTC().Format(timestampLayout)
}

// msisdn renders an E.164 phone the way the gateway expects it: digits only.
func msisdn(phone string) string {
	return strings.TrimPrefix(phone, "+")
}
