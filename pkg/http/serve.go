package xhttp

import (
	"os"
	"reflect"
	"runtime"
	"slices"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/nimasrn/church-messaging/pkg/logger"
)

const (
	maxRequestBodySize = 1 << 20 // message bodies are small JSON documents
	bufferSize         = 16 << 10
	idleTimeout        = 10 * time.Second
)

// ServerOption holds the settings that differ between the api and the
// metrics server.
type ServerOption struct {
	Name         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

var DefaultServerOption = ServerOption{
	Name:         "church-messaging",
	ReadTimeout:  5 * time.Second,
	WriteTimeout: 60 * time.Second,
}

type Server = fasthttp.Server

type Engine struct {
	*Router
	*Server
	middle []MiddlewareFunc
}

func NewServer(options ServerOption) *Engine {
	return &Engine{
		Server: &fasthttp.Server{
			Name:                  options.Name,
			ReadTimeout:           options.ReadTimeout,
			WriteTimeout:          options.WriteTimeout,
			IdleTimeout:           idleTimeout,
			ReadBufferSize:        bufferSize,
			WriteBufferSize:       bufferSize,
			MaxRequestBodySize:    maxRequestBodySize,
			NoDefaultServerHeader: true,
			CloseOnShutdown:       true,
			Logger:                logger.GetLogger(),
			ErrorHandler: func(ctx *RequestCtx, err error) {
				WriteError(ctx, StatusBadRequest, err.Error())
				logger.Warn("[xhttp] request error", "error", err, "path", string(ctx.Path()))
			},
		},
		Router: NewRouter(),
	}
}

// CreateServer is an engine with default options and the JSON router.
func CreateServer() *Engine {
	s := NewServer(DefaultServerOption)
	s.Router = CreateDefaultRouter()
	return s
}

func (e *Engine) ListenAndServe(addr string) error {
	e.DoRouting()
	logger.Info("[xhttp] server is listening", "addr", addr)
	return e.Server.ListenAndServe(addr)
}

// DoRouting binds the router to the server and wraps it with the registered
// middlewares. The first registered middleware is the outermost.
func (e *Engine) DoRouting() {
	for method, route := range e.Router.List() {
		for _, r := range route {
			logger.Debug("[xhttp] route", "method", method, "path", r)
		}
	}
	e.Server.Handler = e.Router.Handler
	chain := slices.Clone(e.middle)
	slices.Reverse(chain)
	for i, m := range chain {
		e.Server.Handler = m(e.Server.Handler)
		logger.Debug("[xhttp] middleware registered", "index", i+1, "name", runtime.FuncForPC(reflect.ValueOf(m).Pointer()).Name())
	}
}

// Handler returns the fully wrapped request handler, mainly for tests.
func (e *Engine) Handler() RequestHandler {
	e.DoRouting()
	return e.Server.Handler
}

// Use adds middleware to the end of the chain.
func (e *Engine) Use(middleware MiddlewareFunc) {
	e.middle = append(e.middle, middleware)
}

// Shutdown gracefully shuts down the server without interrupting any active connections.
func (e *Engine) Shutdown() {
	logger.Info("[xhttp] server is shutting down", "pid", os.Getpid())
	if err := e.Server.Shutdown(); err != nil {
		logger.Error("[xhttp] error while shutting down", "error", err)
	}
}
