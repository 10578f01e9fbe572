package main

import (
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nimasrn/church-messaging/internal/dispatch"
)

// SendResponse is returned for every accepted message.
type SendResponse struct {
	MessageID   string    `json:"message_id"`
	Status      string    `json:"status"`
	To          string    `json:"to"`
	ProviderID  string    `json:"provider_id"`
	ProcessedAt time.Time `json:"processed_at"`
}

// MockProvider accepts the SMS dispatcher's payload and delivers or rejects
// it at a configurable rate.
type MockProvider struct {
	mu           sync.Mutex
	deliveryRate float64
	minDelay     time.Duration
	maxDelay     time.Duration
	apiKey       string
	providerID   string
	rng          *rand.Rand
	sent         []dispatch.SendRequest
}

func NewMockProvider(deliveryRate float64, minDelay, maxDelay time.Duration, apiKey string) *MockProvider {
	return &MockProvider{
		deliveryRate: deliveryRate,
		minDelay:     minDelay,
		maxDelay:     maxDelay,
		apiKey:       apiKey,
		providerID:   "MOCK_PROVIDER_" + uuid.New().String()[:8],
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (m *MockProvider) randomDelay() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func (m *MockProvider) shouldSucceed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rng.Float64() < m.deliveryRate
}

// Send handles POST /api/v1/sms/send.
func (m *MockProvider) Send(c *gin.Context) {
	var req dispatch.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}
	if m.apiKey != "" && req.APIKey != m.apiKey {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid api key"})
		return
	}
	if !strings.HasPrefix(req.To, "+") || strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "to must be E.164 and text must not be empty"})
		return
	}

	time.Sleep(m.randomDelay())

	if !m.shouldSucceed() {
		log.Warn().Str("to", req.To).Msg("SMS rejected")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "operator rejected the message"})
		return
	}

	m.mu.Lock()
	m.sent = append(m.sent, req)
	m.mu.Unlock()

	log.Info().
		Str("to", req.To).
		Str("sender_id", req.SenderID).
		Int("chars", len([]rune(req.Text))).
		Msg("SMS delivered")

	c.JSON(http.StatusOK, SendResponse{
		MessageID:   uuid.NewString(),
		Status:      "DELIVERED",
		To:          req.To,
		ProviderID:  m.providerID,
		ProcessedAt: time.Now().UTC(),
	})
}

// Sent handles GET /api/v1/sms/sent and lists every delivered message.
func (m *MockProvider) Sent(c *gin.Context) {
	m.mu.Lock()
	items := make([]dispatch.SendRequest, len(m.sent))
	copy(items, m.sent)
	m.mu.Unlock()
	for i := range items {
		items[i].APIKey, items[i].APISecret = "", ""
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// UpdateConfig handles PUT /api/v1/config.
func (m *MockProvider) UpdateConfig(c *gin.Context) {
	var cfg struct {
		DeliveryRate *float64 `json:"delivery_rate"`
	}
	if err := c.ShouldBindJSON(&cfg); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "details": err.Error()})
		return
	}

	m.mu.Lock()
	if cfg.DeliveryRate != nil && *cfg.DeliveryRate >= 0 && *cfg.DeliveryRate <= 1 {
		m.deliveryRate = *cfg.DeliveryRate
		log.Info().Float64("rate", *cfg.DeliveryRate).Msg("Updated delivery rate")
	}
	rate := m.deliveryRate
	m.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{"delivery_rate": rate})
}

func (m *MockProvider) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "provider_id": m.providerID})
}

func SetupRouter(m *MockProvider) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(start)).
			Msg("Request processed")
	})

	v1 := router.Group("/api/v1")
	{
		v1.POST("/sms/send", m.Send)
		v1.GET("/sms/sent", m.Sent)
		v1.PUT("/config", m.UpdateConfig)
		v1.GET("/health", m.Health)
	}
	return router
}
