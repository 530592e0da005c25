// Package webhook provides the outbound webhook actions: rate-limited,
// authenticated HTTP calls with bounded retries.
package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/workstack/macrod/pkg/models"
	"github.com/workstack/macrod/pkg/persistence"
	"github.com/workstack/macrod/pkg/ratelimit"
	"github.com/workstack/macrod/pkg/services"
)

var (
	// ErrWebhookIDRequired is returned when no webhook target is configured.
	ErrWebhookIDRequired = errors.New("missing 'webhook_id' in configuration")
	// ErrWebhookDisabled is returned when the target config is disabled.
	ErrWebhookDisabled = errors.New("webhook target is disabled")
	// ErrServerError marks a 5xx response, which is retried.
	ErrServerError = errors.New("server error from webhook target")
	// ErrClientError marks a 4xx response, which fails without retry.
	ErrClientError = errors.New("client error from webhook target")
)

// Action performs one outbound webhook call. CALL_WEBHOOK issues the
// configured method with an optional raw body; SEND_WEBHOOK_JSON posts the
// payload as JSON; SEND_WEBHOOK_FORM posts it urlencoded.
type Action struct {
	Kind      models.ActionType
	WebhookID string
	Method    string
	Payload   map[string]any
	Headers   map[string]string
	Body      string

	configs persistence.WebhookConfigRepository
	limiter *ratelimit.Limiter
	sleep   func(ctx context.Context, d time.Duration) error
}

func NewAction(
	kind models.ActionType,
	config map[string]any,
	configs persistence.WebhookConfigRepository,
	limiter *ratelimit.Limiter,
) (*Action, error) {
	webhookID, _ := config["webhook_id"].(string)
	if webhookID == "" {
		return nil, ErrWebhookIDRequired
	}

	method, _ := config["method"].(string)
	if method == "" {
		if kind == models.ActionCallWebhook {
			method = http.MethodGet
		} else {
			method = http.MethodPost
		}
	}

	payload, _ := config["payload"].(map[string]any)
	body, _ := config["body"].(string)

	headers := make(map[string]string)

	if headersConfig, ok := config["headers"].(map[string]any); ok {
		for k, v := range headersConfig {
			if s, ok := v.(string); ok {
				headers[k] = s
			}
		}
	}

	return &Action{
		Kind:      kind,
		WebhookID: webhookID,
		Method:    strings.ToUpper(method),
		Payload:   payload,
		Headers:   headers,
		Body:      body,
		configs:   configs,
		limiter:   limiter,
		sleep:     sleepContext,
	}, nil
}

// Execute consults the rate limiter, performs the call with the target's
// timeout and retries failed attempts per the target's retry settings.
func (a *Action) Execute(ctx context.Context, execution *models.Execution, logger *slog.Logger) (any, error) {
	config, err := a.configs.WebhookConfigByID(ctx, a.WebhookID)
	if err != nil {
		return nil, &services.DependencyError{Dependency: "webhook_config_store", Err: err}
	}

	if config == nil {
		return nil, fmt.Errorf("webhook config %s not found", a.WebhookID)
	}

	if !config.Enabled {
		return nil, ErrWebhookDisabled
	}

	config.Normalize()

	logger = logger.With("module", "webhook_action", "webhook_id", config.ID, "url", config.URL)

	attempts := 1
	if config.RetryEnabled {
		attempts = config.MaxRetryCount + 1
	}

	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			logger.InfoContext(ctx, fmt.Sprintf("Webhook retry attempt %d/%d", attempt-1, config.MaxRetryCount))

			if err := a.sleep(ctx, config.RetryDelay); err != nil {
				return nil, err
			}
		}

		if err := a.acquireToken(ctx, config, logger); err != nil {
			return nil, err
		}

		result, err := a.callOnce(ctx, config, execution)
		if err == nil {
			if config.LogResponses {
				logger.InfoContext(ctx, "Webhook call succeeded", "status_code", result["status_code"])
			}

			return result, nil
		}

		lastErr = err

		// Client errors and context cancellation do not become better on
		// retry.
		if errors.Is(err, ErrClientError) || ctx.Err() != nil {
			return nil, err
		}
	}

	return nil, fmt.Errorf("webhook call to %s failed after %d attempt(s): %w", config.Name, attempts, lastErr)
}

// acquireToken defers on rate-limit denial up to the target's MaxRateWait;
// exceeding that wait converts the deferral into a dependency failure.
func (a *Action) acquireToken(ctx context.Context, config *models.WebhookConfig, logger *slog.Logger) error {
	var waited time.Duration

	for {
		decision := a.limiter.TryAcquire(config)
		if decision.Allowed {
			return nil
		}

		rateErr := &services.RateLimitedError{Target: config.ID, RetryAfter: decision.RetryAfter}

		if waited+decision.RetryAfter > config.MaxRateWait {
			return &services.DependencyError{Dependency: "webhook:" + config.ID, Err: rateErr}
		}

		logger.InfoContext(ctx, "Webhook rate limited, deferring", "retry_after", decision.RetryAfter)

		if err := a.sleep(ctx, decision.RetryAfter); err != nil {
			return err
		}

		waited += decision.RetryAfter
	}
}

func (a *Action) callOnce(ctx context.Context, config *models.WebhookConfig, execution *models.Execution) (map[string]any, error) {
	callCtx, cancel := context.WithTimeout(ctx, config.Timeout)
	defer cancel()

	body, contentType, err := a.buildBody()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(callCtx, a.Method, config.URL, strings.NewReader(body))
	if err != nil {
		return nil, &services.DependencyError{Dependency: "webhook:" + config.ID, Err: err}
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	for k, v := range a.Headers {
		req.Header.Set(k, v)
	}

	req.Header.Set("X-Macrod-Execution-ID", execution.ID)

	applyAuth(req, config, body)

	client := &http.Client{Timeout: config.Timeout}

	resp, err := client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return nil, &services.TimeoutError{Dependency: "webhook:" + config.ID, Limit: config.Timeout}
		}

		return nil, &services.DependencyError{Dependency: "webhook:" + config.ID, Err: err}
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &services.DependencyError{Dependency: "webhook:" + config.ID, Err: err}
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrServerError)
	case resp.StatusCode >= 400:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, ErrClientError)
	}

	var respBody any
	if err := json.Unmarshal(respBytes, &respBody); err != nil {
		respBody = string(respBytes)
	}

	return map[string]any{
		"status_code": resp.StatusCode,
		"body":        respBody,
		"headers":     resp.Header,
	}, nil
}

func (a *Action) buildBody() (string, string, error) {
	switch a.Kind {
	case models.ActionSendWebhookJSON:
		encoded, err := json.Marshal(a.Payload)
		if err != nil {
			return "", "", fmt.Errorf("failed to marshal payload: %w", err)
		}

		return string(encoded), "application/json", nil

	case models.ActionSendWebhookForm:
		form := url.Values{}
		for k, v := range a.Payload {
			form.Set(k, fmt.Sprintf("%v", v))
		}

		return form.Encode(), "application/x-www-form-urlencoded", nil

	default:
		if a.Body == "" {
			return "", "", nil
		}

		return a.Body, "application/json", nil
	}
}

func applyAuth(req *http.Request, config *models.WebhookConfig, body string) {
	switch config.Auth.Type {
	case models.WebhookAuthBearer:
		req.Header.Set("Authorization", "Bearer "+config.Auth.Token)
	case models.WebhookAuthBasic:
		req.SetBasicAuth(config.Auth.Username, config.Auth.Password)
	case models.WebhookAuthHMAC:
		req.Header.Set("X-Macrod-Signature", computeSignature(config.Auth.Secret, []byte(body)))
	case models.WebhookAuthNone:
	}
}

func computeSignature(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)

	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature lets receivers verify a signed webhook body.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(computeSignature(secret, body)), []byte(signature))
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
