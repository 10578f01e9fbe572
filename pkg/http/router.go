package xhttp

import (
	"encoding/json"

	"github.com/fasthttp/router"
)

type Router = router.Router
type Group = router.Group

func NewRouter() *Router {
	return router.New()
}

// CreateDefaultRouter is the API router: paths are matched strictly, the
// matched route is kept for request logging and unmatched requests get the
// same JSON error envelope as handlers.
func CreateDefaultRouter() *Router {
	r := NewRouter()
	r.RedirectFixedPath = true
	r.RedirectTrailingSlash = true
	r.SaveMatchedRoutePath = true
	r.HandleOPTIONS = false
	r.HandleMethodNotAllowed = true
	r.NotFound = NotFoundHandler
	r.MethodNotAllowed = MethodNotAllowedHandler
	r.PanicHandler = func(ctx *RequestCtx, _ any) {
		WriteError(ctx, StatusInternalServerError, "internal error")
	}
	return r
}

func NotFoundHandler(ctx *RequestCtx) {
	WriteError(ctx, StatusNotFound, StatusText(StatusNotFound))
}

// MethodNotAllowedHandler keeps the Allow header the router has already set.
func MethodNotAllowedHandler(ctx *RequestCtx) {
	WriteError(ctx, StatusMethodNotAllowed, StatusText(StatusMethodNotAllowed))
}

// WriteJSON encodes body as the response with the given status.
func WriteJSON(ctx *RequestCtx, status int, body any) {
	ctx.Response.Header.SetContentType("application/json; charset=utf-8")
	ctx.SetStatusCode(status)
	if err := json.NewEncoder(ctx).Encode(body); err != nil {
		ctx.SetBodyString(`{"success":false,"error":"encode response"}`)
	}
}

// WriteError writes the {"success":false,"error":msg} envelope.
func WriteError(ctx *RequestCtx, status int, msg string) {
	WriteJSON(ctx, status, map[string]any{"success": false, "error": msg})
}
