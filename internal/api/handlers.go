package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/gin-contrib/secure"
	"github.com/gin-gonic/gin"

	"lo1server/internal/auth"
	"lo1server/internal/config"
	"lo1server/internal/httperr"
	"lo1server/internal/logging"
	"lo1server/internal/session"
	"lo1server/internal/upload"
	"lo1server/internal/validation"
	"lo1server/internal/views"
)

const (
	examplesMount = "/examples"
	stateMount    = "/state"
)

// Deps are the collaborators a Handler needs.
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Views     *views.Renderer
	Validator *validation.Engine
	Intake    *upload.Intake
	Processor *upload.Processor
	Sessions  *session.Manager
	Auth      auth.Authenticator
}

// Handler wires HTTP routes to the upload pipeline, validation and state
// management.
type Handler struct {
	cfg       *config.Config
	logger    *slog.Logger
	views     *views.Renderer
	validator *validation.Engine
	intake    *upload.Intake
	processor *upload.Processor
	sessions  *session.Manager
	authn     auth.Authenticator
}

// NewHandler constructs a Handler instance.
func NewHandler(d Deps) *Handler {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := d.Config
	if cfg == nil {
		cfg = config.Default()
	}
	return &Handler{
		cfg:       cfg,
		logger:    logger,
		views:     d.Views,
		validator: d.Validator,
		intake:    d.Intake,
		processor: d.Processor,
		sessions:  d.Sessions,
		authn:     d.Auth,
	}
}

// NewRouter builds the gin engine with the middleware chain and all routes.
func (h *Handler) NewRouter() *gin.Engine {
	router := gin.New()
	router.HTMLRender = h.views
	router.Use(
		logging.Middleware(h.logger),
		h.errorStage(),
		gin.CustomRecovery(h.recovered),
		secure.New(h.secureConfig()),
		auth.Middleware(h.authn),
		contextMiddleware(),
	)
	h.RegisterRoutes(router)
	return router
}

func (h *Handler) secureConfig() secure.Config {
	cfg := secure.Config{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
	}
	if h.cfg.BasicConfig.SSL {
		cfg.SSLRedirect = true
		cfg.STSSeconds = 31536000
		cfg.STSIncludeSubdomains = true
	}
	return cfg
}

// RegisterRoutes attaches all HTTP routes to the router.
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/", handle(h.index))
	router.GET("/users", h.users)

	if dir := h.cfg.BasicConfig.BootswatchDir; dir != "" {
		router.Static("/bw", dir)
	}

	examples := router.Group(examplesMount)
	examples.GET("/", handle(h.examplesIndex))
	examples.GET("/simple-code", handle(h.simpleCode))
	examples.GET("/form", handle(h.formGet))
	examples.POST("/form", handle(h.formPost))
	examples.GET("/upload", handle(h.uploadGet))
	examples.POST("/upload", handle(h.uploadPost))

	state := router.Group(stateMount)
	state.GET("/cookie", handle(h.cookieGet))
	state.POST("/cookie", handle(h.cookiePost))
	sessions := state.Group("/session", h.sessionMiddleware())
	sessions.GET("", handle(h.sessionGet))
	sessions.POST("", handle(h.sessionPost))

	router.NoRoute(h.staticOrNotFound)
}

func (h *Handler) page(rc *RequestContext, title string) views.Page {
	p := views.Page{Title: title}
	if rc != nil && rc.CurrentUser != nil {
		p.CurrentUser = rc.CurrentUser.Name
	}
	return p
}

type indexPage struct {
	views.Page
}

func (h *Handler) index(c *gin.Context, rc *RequestContext) error {
	c.HTML(http.StatusOK, "index", indexPage{Page: h.page(rc, "Express")})
	return nil
}

func (h *Handler) users(c *gin.Context) {
	c.String(http.StatusOK, "respond with a resource")
}

// staticOrNotFound serves files from the static dir for unmatched GET and
// HEAD requests and reports everything else as not found.
func (h *Handler) staticOrNotFound(c *gin.Context) {
	method := c.Request.Method
	if dir := h.cfg.BasicConfig.StaticDir; dir != "" && (method == http.MethodGet || method == http.MethodHead) {
		root := http.Dir(dir)
		name := path.Clean("/" + c.Request.URL.Path)
		if f, err := root.Open(name); err == nil {
			st, statErr := f.Stat()
			f.Close()
			if statErr == nil && !st.IsDir() {
				c.FileFromFS(name, root)
				return
			}
		}
	}
	_ = c.Error(httperr.NotFound(c.Request.URL.Path))
	c.Abort()
}

type errorPage struct {
	views.Page
	Status  int
	Message string
	Detail  string
}

// errorStage renders the error page for the last error recorded by any
// later handler, provided nothing has been written yet.
func (h *Handler) errorStage() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		httperr.Log(h.logger, err)
		if c.Writer.Written() {
			return
		}

		status := httperr.StatusOf(err)
		data := errorPage{
			Page:    h.page(requestContext(c), httperr.MessageOf(err)),
			Status:  status,
			Message: httperr.MessageOf(err),
		}
		if h.cfg.IsDevelopment() {
			data.Detail = errorDetail(err)
		}

		var buf strings.Builder
		if rerr := h.views.Render(&buf, "error", data); rerr != nil {
			h.logger.Error("render error page", "error", rerr)
			c.String(status, "%d %s", status, data.Message)
			return
		}
		c.Data(status, "text/html; charset=utf-8", []byte(buf.String()))
	}
}

func (h *Handler) recovered(c *gin.Context, rec any) {
	err, ok := rec.(error)
	if !ok {
		err = fmt.Errorf("%v", rec)
	}
	_ = c.Error(httperr.Internal("Internal Server Error", err))
	c.Abort()
}

// errorDetail renders the cause chain one error per line.
func errorDetail(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, e.Error())
	}
	return strings.Join(lines, "\n")
}
