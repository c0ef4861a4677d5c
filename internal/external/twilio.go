package external

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"impactalert/internal/types"
)

// twilioAPIBase is the default Twilio REST API base URL.
const twilioAPIBase = "https://api.twilio.com"

// TwilioClientConfig holds the provider identity used to send messages.
type TwilioClientConfig struct {
	AccountSID          types.SecretString
	AuthToken           types.SecretString
	MessagingServiceSID string
	BaseURL             string // Override for testing; defaults to twilioAPIBase
	Logger              *slog.Logger
}

// TwilioClient implements SMSProvider with direct calls to the Programmable
// Messaging API. Requests go through BaseClient with a single attempt.
type TwilioClient struct {
	base                *BaseClient
	accountSID          types.SecretString
	authToken           types.SecretString
	messagingServiceSID string
	baseURL             string
	logger              *slog.Logger
}

// NewTwilioClient creates a TwilioClient. The httpClient timeout bounds every
// provider call. There is no circuit breaker: every dispatch reaches the
// provider exactly once and its answer is surfaced verbatim.
func NewTwilioClient(httpClient *http.Client, cfg TwilioClientConfig) *TwilioClient {
	base := NewBaseClientWithBreaker(httpClient, nil, "ImpactAlert/1.0", WithFinalResponse())
	return NewTwilioClientWithBase(base, cfg)
}

// NewTwilioClientWithBase creates a TwilioClient with a pre-configured
// BaseClient.
func NewTwilioClientWithBase(base *BaseClient, cfg TwilioClientConfig) *TwilioClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = twilioAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &TwilioClient{
		base:                base,
		accountSID:          cfg.AccountSID,
		authToken:           cfg.AuthToken,
		messagingServiceSID: cfg.MessagingServiceSID,
		baseURL:             strings.TrimSuffix(baseURL, "/"),
		logger:              logger,
	}
}

// Configured reports whether the account SID, auth token and messaging
// service SID are all present.
func (c *TwilioClient) Configured() bool {
	return c.accountSID.IsSet() && c.authToken.IsSet() && c.messagingServiceSID != ""
}

// Send creates a message for immediate delivery and returns its SID.
func (c *TwilioClient) Send(ctx context.Context, to, body string) (string, error) {
	return c.createMessage(ctx, c.messageForm(to, body))
}

// Schedule creates a message for delivery at sendAt. The provider rejects
// times outside its scheduling window; that rejection is returned unchanged.
func (c *TwilioClient) Schedule(ctx context.Context, to, body string, sendAt time.Time) (string, error) {
	form := c.messageForm(to, body)
	form.Set("ScheduleType", "fixed")
	form.Set("SendAt", sendAt.UTC().Format(time.RFC3339))
	return c.createMessage(ctx, form)
}

func (c *TwilioClient) messageForm(to, body string) url.Values {
	form := url.Values{}
	form.Set("MessagingServiceSid", c.messagingServiceSID)
	form.Set("To", to)
	form.Set("Body", body)
	return form
}

// twilioMessage is the subset of the Message resource the bridge reads.
type twilioMessage struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
}

// twilioError is the REST API error envelope.
type twilioError struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	MoreInfo string `json:"more_info"`
	Status   int    `json:"status"`
}

func (c *TwilioClient) createMessage(ctx context.Context, form url.Values) (string, error) {
	reqURL := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		c.baseURL, url.PathEscape(c.accountSID.Unmask()))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", types.NewAppError(types.ErrCodeInternalUnexpected, "failed to create provider request", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(c.accountSID.Unmask(), c.authToken.Unmask())

	resp, err := c.base.Do(req)
	if err != nil {
		return "", providerError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamSMSProvider, "provider response was unreadable", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", c.handleErrorResponse(resp.StatusCode, raw)
	}

	var msg twilioMessage
	if err := json.Unmarshal(raw, &msg); err != nil || msg.SID == "" {
		return "", types.NewAppError(types.ErrCodeUpstreamSMSProvider, "provider response did not include a message sid", err)
	}

	c.logger.DebugContext(ctx, "provider accepted message", "sid", msg.SID, "status", msg.Status)
	return msg.SID, nil
}

// handleErrorResponse surfaces the provider's own message verbatim, falling
// back to the raw body and then the status code.
func (c *TwilioClient) handleErrorResponse(status int, raw []byte) error {
	var te twilioError
	msg := ""
	if err := json.Unmarshal(raw, &te); err == nil && te.Message != "" {
		msg = te.Message
	} else if text := strings.TrimSpace(string(raw)); text != "" {
		msg = text
	} else {
		msg = fmt.Sprintf("provider returned status %d", status)
	}

	details := map[string]any{"status": status}
	if te.Code != 0 {
		details["provider_code"] = te.Code
	}
	return types.NewAppErrorWithDetails(types.ErrCodeUpstreamSMSProvider, msg, nil, details)
}

// providerError re-labels a transport failure from BaseClient as a provider
// failure while keeping its descriptive text.
func providerError(err error) error {
	msg := err.Error()
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	return types.NewAppError(types.ErrCodeUpstreamSMSProvider, msg, err)
}

var _ SMSProvider = (*TwilioClient)(nil)
