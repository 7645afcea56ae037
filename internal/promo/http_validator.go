package promo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/vendlyapp/selfcheckout/internal/domain"
)

type validateRequest struct {
	Code    string `json:"code"`
	StoreID string `json:"storeId"`
}

type validateResponse struct {
	DiscountType  string          `json:"discountType"`
	DiscountValue decimal.Decimal `json:"discountValue"`
}

// HTTPValidator asks a remote promo service to validate codes.
type HTTPValidator struct {
	baseURL string
	client  *http.Client
	cb      *gobreaker.CircuitBreaker[domain.DiscountDescriptor]
}

func NewHTTPValidator(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPValidator {
	if logger == nil {
		logger = zap.NewNop()
	}

	settings := gobreaker.Settings{
		Name:        "promo-validation",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrCodeNotFound) || errors.Is(err, ErrCodeInactive)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}

	return &HTTPValidator{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		cb: gobreaker.NewCircuitBreaker[domain.DiscountDescriptor](settings),
	}
}

func (v *HTTPValidator) Validate(ctx context.Context, code, storeID string) (domain.DiscountDescriptor, error) {
	d, err := v.cb.Execute(func() (domain.DiscountDescriptor, error) {
		return v.call(ctx, code, storeID)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	return d, err
}

func (v *HTTPValidator) call(ctx context.Context, code, storeID string) (domain.DiscountDescriptor, error) {
	body, err := json.Marshal(validateRequest{Code: domain.NormalizeCode(code), StoreID: storeID})
	if err != nil {
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/promo-codes/validate", bytes.NewReader(body))
	if err != nil {
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: %v", ErrValidationFailed, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return domain.DiscountDescriptor{}, ErrCodeNotFound
	case http.StatusConflict, http.StatusGone, http.StatusUnprocessableEntity:
		return domain.DiscountDescriptor{}, ErrCodeInactive
	default:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: status %d: %s", ErrValidationFailed, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return domain.DiscountDescriptor{}, fmt.Errorf("%w: decode response: %v", ErrValidationFailed, err)
	}

	return domain.DiscountDescriptor{
		Type:  domain.DiscountType(strings.ToLower(out.DiscountType)),
		Value: out.DiscountValue,
	}, nil
}
