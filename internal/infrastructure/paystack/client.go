package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/DanielPopoola/powervend/internal/application"
	"github.com/DanielPopoola/powervend/internal/config"
)

// HTTPClient talks to the Paystack transaction API.
type HTTPClient struct {
	baseURL    string
	secretKey  string
	httpClient *http.Client
}

var _ application.GatewayClient = (*HTTPClient)(nil)

func NewClient(cfg config.PaystackConfig) *HTTPClient {
	return &HTTPClient{
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (c *HTTPClient) Initialize(ctx context.Context, req application.InitializeRequest) (*application.InitializeResponse, error) {
	body := initializeRequest{
		Email:       req.Email,
		Amount:      req.AmountMinor,
		Currency:    req.Currency,
		CallbackURL: req.CallbackURL,
		Metadata:    req.Metadata,
	}

	data, err := sendRequest[initializeRequest, initializeData](c, ctx, http.MethodPost, c.baseURL+"/transaction/initialize", &body)
	if err != nil {
		return nil, err
	}
	if data.Reference == "" || data.AuthorizationURL == "" {
		return nil, &application.GatewayError{
			Code:       "invalid_response",
			Message:    "initialize response is missing reference or authorization url",
			StatusCode: http.StatusBadGateway,
		}
	}

	return &application.InitializeResponse{
		Reference:        data.Reference,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       data.AccessCode,
	}, nil
}

func (c *HTTPClient) Verify(ctx context.Context, reference string) (*application.VerifyResponse, error) {
	endpoint := c.baseURL + "/transaction/verify/" + url.PathEscape(reference)

	data, err := sendRequest[any, verifyData](c, ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	return &application.VerifyResponse{
		Reference:   data.Reference,
		Status:      mapStatus(data.Status),
		RawStatus:   data.Status,
		AmountMinor: data.Amount,
		Currency:    data.Currency,
		PaidAt:      data.PaidAt,
		Message:     data.GatewayResponse,
	}, nil
}

// mapStatus folds Paystack transaction states into the three the service
// acts on. Abandoned and ongoing checkouts can still complete.
func mapStatus(status string) application.GatewayStatus {
	switch strings.ToLower(status) {
	case "success":
		return application.GatewayStatusSuccess
	case "failed", "reversed":
		return application.GatewayStatusFailed
	default:
		return application.GatewayStatusPending
	}
}

func sendRequest[Req any, Resp any](c *HTTPClient, ctx context.Context, method, endpoint string, reqBody *Req) (*Resp, error) {
	var bodyReader io.Reader
	if reqBody != nil {
		jsonData, err := json.Marshal(reqBody)
		if err != nil {
			return nil, fmt.Errorf("error marshalling json: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, endpoint, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.secretKey)
	httpReq.Header.Set("Accept", "application/json")
	if reqBody != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error making request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newAPIError(resp.StatusCode, body)
	}

	var out envelope[Resp]
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("error decoding json response: %w", err)
	}
	if !out.Status {
		return nil, &application.GatewayError{
			Code:       "rejected",
			Message:    out.Message,
			StatusCode: resp.StatusCode,
		}
	}

	return &out.Data, nil
}
