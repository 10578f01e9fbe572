package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/nimasrn/church-messaging/pkg/logger"
	"github.com/nimasrn/church-messaging/pkg/prom"
	"github.com/nyaruka/phonenumbers"
	"github.com/valyala/fasthttp"
)

const opSMS = "deliver sms"

var (
	ErrInvalidPhone = errors.New("invalid phone number")
	ErrCircuitOpen  = errors.New("sms provider circuit open")
	ErrEmptyBody    = errors.New("sms body is empty")
)

const (
	singleSegmentLen = 160
	multiSegmentLen  = 153
)

type SMSConfig struct {
	URL           string
	APIKey        string
	APISecret     string
	SenderID      string
	DefaultRegion string

	Timeout                 time.Duration
	MaxConns                int
	CircuitBreakerThreshold int
	CircuitBreakerTimeout   time.Duration
}

func (c SMSConfig) configured() bool {
	return c.URL != "" && c.APIKey != ""
}

// SendRequest is the provider's send payload.
type SendRequest struct {
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
	SenderID  string `json:"sender_id"`
	To        string `json:"to"`
	Text      string `json:"text"`
}

// ProviderMetrics tracks the health of the SMS provider.
type ProviderMetrics struct {
	TotalRequests    atomic.Int64
	SuccessfulReqs   atomic.Int64
	FailedReqs       atomic.Int64
	TotalLatencyMs   atomic.Int64
	ConsecutiveFails atomic.Int32
}

func (m *ProviderMetrics) RecordSuccess(latencyMs int64) {
	m.TotalRequests.Add(1)
	m.SuccessfulReqs.Add(1)
	m.TotalLatencyMs.Add(latencyMs)
	m.ConsecutiveFails.Store(0)
}

func (m *ProviderMetrics) RecordFailure() {
	m.TotalRequests.Add(1)
	m.FailedReqs.Add(1)
	m.ConsecutiveFails.Add(1)
}

func (m *ProviderMetrics) AvgLatencyMs() int64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 0
	}
	return m.TotalLatencyMs.Load() / total
}

func (m *ProviderMetrics) SuccessRate() float64 {
	total := m.TotalRequests.Load()
	if total == 0 {
		return 1.0
	}
	return float64(m.SuccessfulReqs.Load()) / float64(total)
}

// SMSDispatcher posts to an HTTP messaging provider. Each Deliver is one
// request; there are no retries, the next occurrence or an operator does
// that. Consecutive failures open a circuit that fails fast until it
// times out.
type SMSDispatcher struct {
	cfg     SMSConfig
	policy  Policy
	client  *fasthttp.Client
	metrics *ProviderMetrics

	circuitOpenUntil atomic.Int64
	now              func() time.Time
}

func NewSMSDispatcher(cfg SMSConfig, policy Policy) *SMSDispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 16
	}
	if cfg.CircuitBreakerThreshold <= 0 {
		cfg.CircuitBreakerThreshold = 5
	}
	if cfg.CircuitBreakerTimeout <= 0 {
		cfg.CircuitBreakerTimeout = 30 * time.Second
	}
	if cfg.DefaultRegion == "" {
		cfg.DefaultRegion = "US"
	}

	d := &SMSDispatcher{
		cfg:     cfg,
		policy:  policy,
		metrics: &ProviderMetrics{},
		now:     time.Now,
		client: &fasthttp.Client{
			MaxConnsPerHost:     cfg.MaxConns,
			ReadTimeout:         cfg.Timeout,
			WriteTimeout:        cfg.Timeout,
			MaxIdleConnDuration: 60 * time.Second,
		},
	}

	if cfg.configured() {
		logger.Info("sms dispatcher initialized", "url", cfg.URL, "sender_id", cfg.SenderID, "timeout", cfg.Timeout)
	} else {
		logger.Warn("sms provider not configured", "simulated", policy.AllowSimulated)
	}
	return d
}

func (d *SMSDispatcher) Metrics() *ProviderMetrics {
	return d.metrics
}

func (d *SMSDispatcher) Deliver(ctx context.Context, destination, subject, body string) (Outcome, error) {
	to, err := NormalizePhone(destination, d.cfg.DefaultRegion)
	if err != nil {
		return failed(opSMS, err)
	}
	text := PlainText(body)
	if text == "" {
		return failed(opSMS, ErrEmptyBody)
	}
	segments := Segments(text)
	prom.AddSMSSegments(segments)

	if !d.cfg.configured() {
		return d.policy.unconfigured(opSMS, segments)
	}
	if d.circuitOpen() {
		out, err := failed(opSMS, ErrCircuitOpen)
		out.Segments = segments
		return out, err
	}
	if err := ctx.Err(); err != nil {
		return failed(opSMS, err)
	}

	payload, err := json.Marshal(&SendRequest{
		APIKey:    d.cfg.APIKey,
		APISecret: d.cfg.APISecret,
		SenderID:  d.cfg.SenderID,
		To:        to,
		Text:      text,
	})
	if err != nil {
		return failed(opSMS, fmt.Errorf("failed to marshal request: %w", err))
	}

	start := d.now()
	if err := d.doRequest(ctx, payload); err != nil {
		d.metrics.RecordFailure()
		d.checkCircuitBreaker()
		logger.Warn("sms delivery failed", "to", to, "error", err, "consecutive_fails", d.metrics.ConsecutiveFails.Load())
		out, err := failed(opSMS, err)
		out.Segments = segments
		return out, err
	}
	d.metrics.RecordSuccess(d.now().Sub(start).Milliseconds())

	return Outcome{Delivered: true, Segments: segments}, nil
}

func (d *SMSDispatcher) doRequest(ctx context.Context, body []byte) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(d.cfg.URL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.SetBody(body)

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(d.cfg.Timeout)
	}

	if err := d.client.DoDeadline(req, resp, deadline); err != nil {
		return fmt.Errorf("request failed: %w", err)
	}

	statusCode := resp.StatusCode()
	if statusCode != fasthttp.StatusOK && statusCode != fasthttp.StatusAccepted && statusCode != fasthttp.StatusCreated {
		return fmt.Errorf("unexpected status code: %d, body: %s", statusCode, resp.Body())
	}
	return nil
}

func (d *SMSDispatcher) circuitOpen() bool {
	until := d.circuitOpenUntil.Load()
	if until == 0 {
		return false
	}
	if d.now().UnixNano() >= until {
		// half-open: let the next request probe the provider
		d.circuitOpenUntil.Store(0)
		return false
	}
	return true
}

func (d *SMSDispatcher) checkCircuitBreaker() {
	consecutiveFails := d.metrics.ConsecutiveFails.Load()
	if consecutiveFails >= int32(d.cfg.CircuitBreakerThreshold) {
		d.circuitOpenUntil.Store(d.now().Add(d.cfg.CircuitBreakerTimeout).UnixNano())
		logger.Warn("Circuit breaker opened", "consecutive_fails", consecutiveFails, "timeout", d.cfg.CircuitBreakerTimeout)
	}
}

// NormalizePhone returns raw in E.164 form. Numbers without a country code
// are read in region.
func NormalizePhone(raw, region string) (string, error) {
	num, err := phonenumbers.Parse(raw, region)
	if err != nil {
		return "", fmt.Errorf("%w: %q: %v", ErrInvalidPhone, raw, err)
	}
	if !phonenumbers.IsValidNumber(num) {
		return "", fmt.Errorf("%w: %q", ErrInvalidPhone, raw)
	}
	return phonenumbers.Format(num, phonenumbers.E164), nil
}

// Segments is the number of SMS parts text is billed as: one part up to 160
// characters, otherwise 153 per part.
func Segments(text string) int {
	n := utf8.RuneCountInString(text)
	switch {
	case n == 0:
		return 0
	case n <= singleSegmentLen:
		return 1
	}
	return (n + multiSegmentLen - 1) / multiSegmentLen
}
