package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"

	"github.com/nimasrn/church-messaging/internal/audience"
	"github.com/nimasrn/church-messaging/internal/delivery"
	"github.com/nimasrn/church-messaging/internal/dispatch"
	"github.com/nimasrn/church-messaging/internal/handlers"
	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/internal/repository"
	"github.com/nimasrn/church-messaging/internal/services"
	xhttp "github.com/nimasrn/church-messaging/pkg/http"
	"github.com/nimasrn/church-messaging/pkg/redis"
)

const lockKey = "delivery:worker:lock"

type TestEnvironment struct {
	DB      *repository.TestDB
	Repos   *repository.Repositories
	Redis   *miniredis.Miniredis
	Worker  *delivery.Worker
	Handler fasthttp.RequestHandler
	Members []int64
}

// setupE2EEnvironment wires the api exactly as cmd/api does, on sqlite and
// miniredis, with unconfigured providers running in simulated mode.
func setupE2EEnvironment(t *testing.T) *TestEnvironment {
	db := repository.SetupTestDB(t)

	mr := miniredis.RunT(t)
	rds, err := redis.NewRedisAdapter(t.Name(), "e2e:", &redis.Options{Addrs: []string{mr.Addr()}})
	require.NoError(t, err)
	t.Cleanup(func() { redis.Forget(t.Name()) })

	env := &TestEnvironment{DB: db, Redis: mr}
	for i, p := range []string{"+1 650-253-0000", "+1 650-253-0001", "+1 650-253-0002", "12"} {
		env.Members = append(env.Members, db.SeedMember(t, repository.MemberEntity{
			FirstName: fmt.Sprintf("Member%d", i),
			LastName:  "Smith",
			Email:     repository.Str(fmt.Sprintf("member%d@example.org", i)),
			Phone:     repository.Str(p),
			Status:    "active",
			Ministry:  repository.Str("Worship"),
		}))
	}

	policy := dispatch.Policy{AllowSimulated: true}
	email, err := dispatch.NewEmailDispatcher(dispatch.EmailConfig{}, policy)
	require.NoError(t, err)
	registry := dispatch.NewRegistry().
		Register(model.ChannelEmail, email).
		Register(model.ChannelSMS, dispatch.NewSMSDispatcher(dispatch.SMSConfig{}, policy))

	env.Repos = repository.NewRepositories(db.DB)
	env.Worker = delivery.NewWorker(
		delivery.Config{BatchSize: 10, Throttle: time.Millisecond},
		delivery.NewStores(env.Repos),
		registry,
		delivery.NewRunLock(rds, lockKey, time.Minute),
	)

	svc := services.NewMessageService(env.Repos, audience.NewResolver(env.Repos.Members), env.Worker)

	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestIDMiddleware)
	s.Router = xhttp.CreateDefaultRouter()
	g := s.Router.Group("/api/v1")
	handlers.RegisterMessageRoutes(g, handlers.NewMessageHandler(svc))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(services.NewHealthService(db.DB, rds)))
	env.Handler = s.Handler()

	return env
}

func (e *TestEnvironment) do(t *testing.T, method, uri string, body any) (int, map[string]any) {
	ctx := &fasthttp.RequestCtx{}
	ctx.Init(&fasthttp.Request{}, nil, nil)
	ctx.Request.Header.SetMethod(method)
	ctx.Request.SetRequestURI(uri)
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		ctx.Request.Header.SetContentType("application/json")
		ctx.Request.SetBody(b)
	}
	e.Handler(ctx)

	var out map[string]any
	if len(ctx.Response.Body()) > 0 {
		require.NoError(t, json.Unmarshal(ctx.Response.Body(), &out), string(ctx.Response.Body()))
	}
	return ctx.Response.StatusCode(), out
}

func TestE2E_SendDeliversInline(t *testing.T) {
	env := setupE2EEnvironment(t)

	status, body := env.do(t, "POST", "/api/v1/messages", map[string]any{
		"title":             "Rehearsal moved",
		"content":           "<p>Rehearsal is at <b>7pm</b> tonight.</p>",
		"delivery_channels": []string{"sms"},
		"audience_type":     "individual",
		"member_ids":        env.Members,
		"action":            "send",
	})
	require.Equal(t, 201, status, body)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(4), body["total_recipients"])
	assert.Equal(t, string(model.MessageStatusSent), body["status"])

	stats := body["delivery_stats"].(map[string]any)
	assert.Equal(t, float64(3), stats["sent"])
	assert.Equal(t, float64(1), stats["failed"])
	assert.Equal(t, float64(0), stats["pending"])

	id := int64(body["message_id"].(float64))
	status, body = env.do(t, "GET", fmt.Sprintf("/api/v1/messages/%d/recipients", id), nil)
	require.Equal(t, 200, status)
	items := body["items"].([]any)
	require.Len(t, items, 4)
	for _, it := range items[:3] {
		row := it.(map[string]any)
		assert.Equal(t, "sent", row["delivery_status"])
		assert.Equal(t, true, row["simulated"])
	}
	bad := items[3].(map[string]any)
	assert.Equal(t, "failed", bad["delivery_status"])
	assert.NotEmpty(t, bad["error"])
}

func TestE2E_RecurringScheduleThroughWorker(t *testing.T) {
	env := setupE2EEnvironment(t)
	ctx := context.Background()

	occurrence := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)
	status, body := env.do(t, "POST", "/api/v1/messages", map[string]any{
		"message_type":      "announcement",
		"title":             "Worship team",
		"content":           "Practice this week",
		"delivery_channels": []string{"email"},
		"audience_type":     "ministry",
		"audience_value":    "Worship",
		"action":            "schedule",
		"scheduled_at":      occurrence.Format(time.RFC3339),
		"recurrence":        "weekly",
	})
	require.Equal(t, 201, status, body)
	assert.Equal(t, string(model.MessageStatusScheduled), body["status"])
	id := int64(body["message_id"].(float64))

	report, err := env.Worker.RunCycle(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Claimed)
	assert.Equal(t, 4, report.RowsSent)
	assert.False(t, env.Redis.Exists("e2e:"+lockKey), "lock released after the cycle")

	// the ledger is re-armed for the next occurrence
	status, body = env.do(t, "GET", fmt.Sprintf("/api/v1/messages/%d", id), nil)
	require.Equal(t, 200, status)
	assert.Equal(t, string(model.MessageStatusScheduled), body["status"])
	assert.Equal(t, float64(4), body["total_sent"])
	assert.Equal(t, float64(4), body["delivery_stats"].(map[string]any)["pending"])

	entries, err := env.Repos.Schedules.ListByMessage(ctx, id)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, model.ScheduleStatusPending, entries[0].Status)
	assert.Equal(t, 1, entries[0].RunCount)
	assert.True(t, occurrence.AddDate(0, 0, 7).Equal(entries[0].NextRun))
	require.NotNil(t, entries[0].LastRun)
	assert.True(t, occurrence.Equal(*entries[0].LastRun))

	// nothing is due until next week
	report, err = env.Worker.RunCycle(ctx)
	require.NoError(t, err)
	assert.Zero(t, report.Claimed)

	status, body = env.do(t, "GET", "/api/v1/worker/runs", nil)
	require.Equal(t, 200, status)
	assert.Len(t, body["items"], 2)
}

func TestE2E_CycleSkippedWhileLockHeld(t *testing.T) {
	env := setupE2EEnvironment(t)
	require.NoError(t, env.Redis.Set("e2e:"+lockKey, "another-worker"))

	report, err := env.Worker.RunCycle(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Skipped)
	assert.True(t, env.Redis.Exists("e2e:"+lockKey), "foreign lock left untouched")
}

func TestE2E_RejectionsAndDelete(t *testing.T) {
	env := setupE2EEnvironment(t)

	status, _ := env.do(t, "POST", "/api/v1/messages", map[string]any{
		"title": "Empty", "content": "x", "delivery_channels": []string{"email"},
		"audience_type": "group", "audience_value": "Nobody", "action": "send",
	})
	assert.Equal(t, 422, status)

	status, _ = env.do(t, "POST", "/api/v1/messages", map[string]any{
		"title": "Missing time", "content": "x", "delivery_channels": []string{"email"},
		"action": "schedule",
	})
	assert.Equal(t, 422, status)

	status, body := env.do(t, "POST", "/api/v1/messages", map[string]any{
		"title": "Draft", "content": "x", "delivery_channels": []string{"email", "sms"},
		"action": "draft",
	})
	require.Equal(t, 201, status)
	assert.Equal(t, float64(8), body["total_recipients"])
	id := int64(body["message_id"].(float64))

	status, _ = env.do(t, "DELETE", fmt.Sprintf("/api/v1/messages/%d", id), nil)
	assert.Equal(t, 204, status)
	status, _ = env.do(t, "GET", fmt.Sprintf("/api/v1/messages/%d", id), nil)
	assert.Equal(t, 404, status)

	status, body = env.do(t, "GET", "/api/v1/health", nil)
	assert.Equal(t, 200, status)
	assert.Equal(t, "ok", body["checks"].(map[string]any)["redis"])
}
