package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	json "github.com/json-iterator/go"

	"github.com/diogomassis/payfriend/internal/dto"
	"github.com/diogomassis/payfriend/internal/models"
)

const (
	SendPath    = "/payments/send"
	StatusPath  = "/payments/status"
	SuccessPath = "/payments/"
	RetryPath   = "/payments/send"
	SmsCodePath = "/payments/auth/sms"
	SmsSendPath = "/payments/auth/sms/send"

	FlashMessageField    = "flash_message"
	RedirectMessageField = "redirect_message"
	UserHeader           = "X-User-ID"

	maxBodySize = 1 << 20
)

// HTTPPaymentGateway talks to the payment backend endpoints.
type HTTPPaymentGateway struct {
	baseURL *url.URL
	userID  string
	client  *http.Client
}

func NewHTTPPaymentGateway(baseURL string, timeout time.Duration) (*HTTPPaymentGateway, error) {
	transport := &http.Transport{
		MaxIdleConns:        10,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		DisableKeepAlives:   false,
	}
	return NewWithHTTPClient(baseURL, &http.Client{
		Timeout:   timeout,
		Transport: transport,
	})
}

func NewWithHTTPClient(baseURL string, client *http.Client) (*HTTPPaymentGateway, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid payment base url %q: %w", baseURL, err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid payment base url %q: scheme and host are required", baseURL)
	}
	return &HTTPPaymentGateway{
		baseURL: parsed,
		client:  client,
	}, nil
}

// WithUser attributes every request to userID.
func (g *HTTPPaymentGateway) WithUser(userID string) *HTTPPaymentGateway {
	g.userID = userID
	return g
}

func (g *HTTPPaymentGateway) resolve(path string, query url.Values) string {
	ref := &url.URL{Path: path}
	if query != nil {
		ref.RawQuery = query.Encode()
	}
	return g.baseURL.ResolveReference(ref).String()
}

func (g *HTTPPaymentGateway) do(ctx context.Context, method, target string, form url.Values) (int, []byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request for %s: %w", target, err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json, text/plain")
	if g.userID != "" {
		req.Header.Set(UserHeader, g.userID)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("%w: reading body: %v", ErrServiceUnavailable, err)
	}
	if resp.StatusCode >= 500 {
		return resp.StatusCode, data, fmt.Errorf("%w: received status code %d", ErrServiceUnavailable, resp.StatusCode)
	}
	return resp.StatusCode, data, nil
}

// Submit posts the payment form. A 4xx answer that still carries
// success=false is a rejection, not an error.
func (g *HTTPPaymentGateway) Submit(ctx context.Context, payment *models.PaymentRequest) (*models.SubmissionResult, error) {
	form, err := payment.GenerateQueryString()
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment form: %w", err)
	}
	status, data, err := g.do(ctx, http.MethodPost, g.resolve(SendPath, nil), form)
	if err != nil {
		return nil, err
	}

	var res dto.SendPaymentResponse
	decodeErr := json.Unmarshal(data, &res)
	if status >= 400 {
		if decodeErr == nil && !res.Success {
			return &models.SubmissionResult{Accepted: false}, nil
		}
		return nil, fmt.Errorf("%w: received status code %d", ErrRequestRejected, status)
	}
	if decodeErr != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedSubmission, decodeErr)
	}
	if !res.Success {
		return &models.SubmissionResult{Accepted: false}, nil
	}
	if res.RequestID == "" {
		return nil, fmt.Errorf("%w: success without request_id", ErrMalformedSubmission)
	}
	return &models.SubmissionResult{Accepted: true, RequestID: res.RequestID}, nil
}

// Status asks for the current outcome of requestID. Unknown bodies and 4xx
// answers come back as OutcomePending together with ErrMalformedStatus.
func (g *HTTPPaymentGateway) Status(ctx context.Context, requestID string) (models.Outcome, error) {
	status, data, err := g.do(ctx, http.MethodGet, g.resolve(StatusPath, url.Values{"request_id": {requestID}}), nil)
	if err != nil {
		return models.OutcomePending, err
	}
	if status >= 400 {
		return models.OutcomePending, fmt.Errorf("%w: received status code %d", ErrMalformedStatus, status)
	}
	outcome, known := models.ParseOutcome(data)
	if !known {
		return outcome, fmt.Errorf("%w: %q", ErrMalformedStatus, truncate(data, 64))
	}
	return outcome, nil
}

// Navigate performs the exit navigation: a form post to the directive target
// carrying the flash message, like the hidden redirect form of a browser.
func (g *HTTPPaymentGateway) Navigate(ctx context.Context, directive *models.RedirectDirective) (*dto.LandingResponse, error) {
	form := url.Values{}
	if directive.Message != "" {
		form.Set(FlashMessageField, directive.Message)
		form.Set(RedirectMessageField, directive.Message)
	}
	status, data, err := g.do(ctx, http.MethodPost, g.resolve(directive.Target, nil), form)
	if err != nil {
		return nil, err
	}
	if status >= 400 {
		return nil, fmt.Errorf("%w: navigation to %s returned %d", ErrRequestRejected, directive.Target, status)
	}
	landing := &dto.LandingResponse{}
	if err := json.Unmarshal(data, landing); err != nil {
		// Non JSON landing pages still count as a completed navigation.
		landing.Flash = directive.Message
	}
	return landing, nil
}

// RequestCode asks the backend to send the SMS code for requestID.
func (g *HTTPPaymentGateway) RequestCode(ctx context.Context, requestID string) error {
	status, _, err := g.do(ctx, http.MethodPost, g.resolve(SmsSendPath, nil), url.Values{"request_id": {requestID}})
	if err != nil {
		return err
	}
	if status >= 400 {
		return fmt.Errorf("%w: received status code %d", ErrRequestRejected, status)
	}
	return nil
}

// SubmitCode posts the secondary channel code. The flow itself learns the
// result through the status endpoint.
func (g *HTTPPaymentGateway) SubmitCode(ctx context.Context, requestID, code string) (*dto.DecisionResponse, error) {
	status, data, err := g.do(ctx, http.MethodPost, g.resolve(SmsCodePath, nil), url.Values{
		"request_id": {requestID},
		"code":       {code},
	})
	if err != nil {
		return nil, err
	}
	var res dto.DecisionResponse
	if err := json.Unmarshal(data, &res); err != nil {
		return nil, fmt.Errorf("%w: received status code %d", ErrRequestRejected, status)
	}
	return &res, nil
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
