package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fasthttp/router"

	"github.com/nimasrn/church-messaging/internal/apperr"
	"github.com/nimasrn/church-messaging/internal/model"
	"github.com/nimasrn/church-messaging/internal/recurrence"
	"github.com/nimasrn/church-messaging/internal/services"
	xhttp "github.com/nimasrn/church-messaging/pkg/http"
	"github.com/nimasrn/church-messaging/pkg/logger"
)

type MessageService interface {
	Create(ctx context.Context, req model.CreateMessageRequest) (*services.CreateResult, error)
	Get(ctx context.Context, id int64) (*services.MessageDetail, error)
	List(ctx context.Context, f model.MessageFilter) ([]*model.Message, int64, error)
	Recipients(ctx context.Context, id int64) ([]*model.RecipientEntry, error)
	Schedules(ctx context.Context, id int64) ([]*model.ScheduleEntry, error)
	Delete(ctx context.Context, id int64) error
	WorkerRuns(ctx context.Context, limit int) ([]*model.WorkerRun, error)
}

type MessageHandler struct {
	svc MessageService
}

func RegisterMessageRoutes(e *router.Group, h *MessageHandler) {
	e.POST("/messages", h.CreateMessage)
	e.GET("/messages", h.ListMessages)
	e.GET("/messages/{id}", h.GetMessage)
	e.GET("/messages/{id}/recipients", h.ListRecipients)
	e.GET("/messages/{id}/schedules", h.ListSchedules)
	e.DELETE("/messages/{id}", h.DeleteMessage)
	e.GET("/worker/runs", h.ListWorkerRuns)
}

func NewMessageHandler(messageService MessageService) *MessageHandler {
	return &MessageHandler{
		svc: messageService,
	}
}

type createMessageRequest struct {
	MessageType      string   `json:"message_type"`
	Title            string   `json:"title"`
	Content          string   `json:"content"`
	DeliveryChannels []string `json:"delivery_channels"`
	AudienceType     string   `json:"audience_type"`
	AudienceValue    string   `json:"audience_value"`
	MemberIDs        []int64  `json:"member_ids"`
	Action           string   `json:"action"`
	ScheduledAt      string   `json:"scheduled_at"`
	Recurrence       string   `json:"recurrence"`
	RecurrenceEnd    string   `json:"recurrence_end"`
}

type createMessageResponse struct {
	Success         bool                 `json:"success"`
	MessageID       int64                `json:"message_id"`
	TotalRecipients int                  `json:"total_recipients"`
	Status          model.MessageStatus  `json:"status"`
	DeliveryStats   *model.DeliveryStats `json:"delivery_stats,omitempty"`
}

type listResponse struct {
	Items []*model.Message `json:"items"`
	Total int64            `json:"total"`
}

/* --------------------------------- Routes ----------------------------------- */

func (h *MessageHandler) CreateMessage(ctx *xhttp.RequestCtx) {
	var req createMessageRequest
	if err := readJSON(ctx, &req); err != nil {
		writeError(ctx, xhttp.StatusBadRequest, "invalid JSON: "+err.Error())
		return
	}
	p, err := req.toModel()
	if err != nil {
		writeServiceError(ctx, err)
		return
	}

	res, err := h.svc.Create(ctx, p)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusCreated, createMessageResponse{
		Success:         true,
		MessageID:       res.MessageID,
		TotalRecipients: res.TotalRecipients,
		Status:          res.Status,
		DeliveryStats:   res.DeliveryStats,
	})
}

func (r createMessageRequest) toModel() (model.CreateMessageRequest, error) {
	const op = "decode message request"

	aud, err := model.ParseAudience(r.AudienceType, r.AudienceValue, r.MemberIDs)
	if err != nil {
		return model.CreateMessageRequest{}, err
	}
	rec, err := recurrence.ParseRecurrence(r.Recurrence)
	if err != nil {
		return model.CreateMessageRequest{}, err
	}

	p := model.CreateMessageRequest{
		Type:       r.MessageType,
		Title:      r.Title,
		Content:    r.Content,
		Audience:   aud,
		Action:     model.Action(strings.ToLower(strings.TrimSpace(r.Action))),
		Recurrence: rec,
	}
	for _, c := range r.DeliveryChannels {
		p.Channels = append(p.Channels, model.Channel(strings.ToLower(strings.TrimSpace(c))))
	}
	if r.ScheduledAt != "" {
		t, err := parseTime(r.ScheduledAt)
		if err != nil {
			return p, apperr.Validation(op, "scheduled_at: %v", err)
		}
		p.ScheduledAt = &t
	}
	if r.RecurrenceEnd != "" {
		end, err := model.ParseRecurrenceEnd(r.RecurrenceEnd)
		if err != nil {
			return p, apperr.Validation(op, "recurrence_end: %v", err)
		}
		p.RecurrenceEnd = end
	}
	return p, nil
}

func (h *MessageHandler) ListMessages(ctx *xhttp.RequestCtx) {
	var f model.MessageFilter

	if v := query(ctx, "message_type"); v != "" {
		f.Type = &v
	}
	if v := query(ctx, "status"); v != "" {
		parts := strings.Split(v, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
			if parts[i] != "" {
				f.Statuses = append(f.Statuses, model.MessageStatus(parts[i]))
			}
		}
	}
	if v := query(ctx, "from"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.From = &t
		}
	}
	if v := query(ctx, "to"); v != "" {
		if t, e := parseTime(v); e == nil {
			f.To = &t
		}
	}
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Limit = n
		}
	}
	if v := query(ctx, "offset"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			f.Offset = n
		}
	}
	if strings.EqualFold(query(ctx, "order"), "desc") {
		f.Desc = true
	}

	items, total, err := h.svc.List(ctx, f)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, listResponse{Items: items, Total: total})
}

func (h *MessageHandler) GetMessage(ctx *xhttp.RequestCtx) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}
	msg, err := h.svc.Get(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, msg)
}

func (h *MessageHandler) ListRecipients(ctx *xhttp.RequestCtx) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}
	rows, err := h.svc.Recipients(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"items": rows})
}

func (h *MessageHandler) ListSchedules(ctx *xhttp.RequestCtx) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}
	entries, err := h.svc.Schedules(ctx, id)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"items": entries})
}

func (h *MessageHandler) DeleteMessage(ctx *xhttp.RequestCtx) {
	id, ok := pathID(ctx)
	if !ok {
		return
	}
	if err := h.svc.Delete(ctx, id); err != nil {
		writeServiceError(ctx, err)
		return
	}
	ctx.SetStatusCode(xhttp.StatusNoContent)
}

func (h *MessageHandler) ListWorkerRuns(ctx *xhttp.RequestCtx) {
	limit := 0
	if v := query(ctx, "limit"); v != "" {
		if n, e := strconv.Atoi(v); e == nil {
			limit = n
		}
	}
	runs, err := h.svc.WorkerRuns(ctx, limit)
	if err != nil {
		writeServiceError(ctx, err)
		return
	}
	writeJSON(ctx, xhttp.StatusOK, map[string]any{"items": runs})
}

/* --------------------------------- Helpers ---------------------------------- */

// writeServiceError maps error kinds to status codes.
func writeServiceError(ctx *xhttp.RequestCtx, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		writeError(ctx, xhttp.StatusNotFound, err.Error())
	case apperr.IsKind(err, apperr.KindValidation), apperr.IsKind(err, apperr.KindNoRecipients):
		writeError(ctx, xhttp.StatusUnprocessableEntity, err.Error())
	default:
		logger.Error("Request failed", "path", string(ctx.Path()), "error", err)
		writeError(ctx, xhttp.StatusInternalServerError, "internal error")
	}
}

func pathID(ctx *xhttp.RequestCtx) (int64, bool) {
	raw := fmt.Sprint(ctx.UserValue("id"))
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(ctx, xhttp.StatusBadRequest, "invalid message id")
		return 0, false
	}
	return id, true
}

func readJSON(ctx *xhttp.RequestCtx, dst any) error {
	body := ctx.PostBody()
	return json.Unmarshal(body, dst)
}

func writeJSON(ctx *xhttp.RequestCtx, status int, v any) {
	xhttp.WriteJSON(ctx, status, v)
}

func writeError(ctx *xhttp.RequestCtx, status int, msg string) {
	xhttp.WriteError(ctx, status, msg)
}

func query(ctx *xhttp.RequestCtx, key string) string {
	return string(ctx.QueryArgs().Peek(key))
}

func parseTime(s string) (time.Time, error) {
	// Accept RFC3339 or YYYY-MM-DD
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
