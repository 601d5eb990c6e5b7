// Package controlapi 本机 HTTP 控制接口：命令行子命令通过它操作正在运行的应用。
package controlapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"traysites/internal/lifecycle"
	"traysites/internal/site"
)

// SiteController 控制接口需要的站点操作
type SiteController interface {
	Add(ctx context.Context, url string) (site.View, error)
	Get(ctx context.Context, id string) (site.View, error)
	Initialize(ctx context.Context, id string) error
	Open(ctx context.Context, id string) error
	Stop(ctx context.Context, id string) error
	Exit(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]site.View, error)
}

// Status 应用运行状态
type Status struct {
	Version     string `json:"version"`
	StartTime   string `json:"start_time"`
	Uptime      string `json:"uptime"`
	SiteCount   int    `json:"site_count"`
	ShownCount  int    `json:"shown_count"`
	ControlAddr string `json:"control_addr,omitempty"`
}

// StatusFunc 返回当前状态
type StatusFunc func(ctx context.Context) Status

// AddSiteRequest POST /api/sites 请求体
type AddSiteRequest struct {
	URL string `json:"url" binding:"required"`
}

// ErrorResponse 错误响应体
type ErrorResponse struct {
	Error string `json:"error"`
}

// Handler 控制接口处理器
type Handler struct {
	sites  SiteController
	status StatusFunc
	logger *slog.Logger
}

// NewHandler 创建处理器
func NewHandler(sites SiteController, status StatusFunc, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{sites: sites, status: status, logger: logger}
}

// NewRouter 注册全部路由
func NewRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), h.requestLogger())

	api := r.Group("/api")
	api.GET("/status", h.GetStatus)
	api.GET("/sites", h.ListSites)
	api.POST("/sites", h.AddSite)
	api.GET("/sites/:id", h.GetSite)
	api.POST("/sites/:id/init", h.siteAction("init", h.sites.Initialize))
	api.POST("/sites/:id/open", h.siteAction("open", h.sites.Open))
	api.POST("/sites/:id/stop", h.siteAction("stop", h.sites.Stop))
	api.POST("/sites/:id/exit", h.siteAction("exit", h.sites.Exit))
	api.DELETE("/sites/:id", h.siteAction("delete", h.sites.Delete))
	return r
}

// GetStatus handles GET /api/status
func (h *Handler) GetStatus(c *gin.Context) {
	if h.status == nil {
		c.JSON(http.StatusOK, Status{})
		return
	}
	c.JSON(http.StatusOK, h.status(c.Request.Context()))
}

// ListSites handles GET /api/sites
func (h *Handler) ListSites(c *gin.Context) {
	views, err := h.sites.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	if views == nil {
		views = []site.View{}
	}
	c.JSON(http.StatusOK, views)
}

// AddSite handles POST /api/sites
func (h *Handler) AddSite(c *gin.Context) {
	var req AddSiteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "请求体无效: " + err.Error()})
		return
	}

	view, err := h.sites.Add(c.Request.Context(), req.URL)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GetSite handles GET /api/sites/:id
func (h *Handler) GetSite(c *gin.Context) {
	view, err := h.sites.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) siteAction(name string, fn func(context.Context, string) error) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if err := fn(c.Request.Context(), id); err != nil {
			h.fail(c, err)
			return
		}
		h.logger.Info("🎛️ 控制接口执行命令", "command", name, "id", id)
		c.Status(http.StatusNoContent)
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := StatusCode(err)
	if code >= http.StatusInternalServerError {
		h.logger.Error("❌ 控制接口请求失败", "path", c.FullPath(), "error", err)
	}
	c.JSON(code, ErrorResponse{Error: err.Error()})
}

// StatusCode 错误到 HTTP 状态码的映射
func StatusCode(err error) int {
	switch {
	case errors.Is(err, site.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, site.ErrInvalidURL), errors.Is(err, site.ErrReservedID):
		return http.StatusBadRequest
	case errors.Is(err, lifecycle.ErrNotRunning):
		return http.StatusConflict
	case errors.Is(err, lifecycle.ErrStopped):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		h.logger.Debug("控制接口请求",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start))
	}
}

// Server 控制接口 HTTP 服务
type Server struct {
	httpServer *http.Server
	listener   net.Listener
	logger     *slog.Logger
}

// NewServer 创建服务，handler 通常为 NewRouter 的结果
func NewServer(addr string, handler http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start 监听并在后台提供服务
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("控制接口监听失败 %s: %w", s.httpServer.Addr, err)
	}
	s.listener = ln

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("❌ 控制接口异常退出", "error", err)
		}
	}()
	s.logger.Info("🌐 控制接口已启动", "addr", ln.Addr().String())
	return nil
}

// Addr 实际监听地址（端口为 0 时由系统分配）
func (s *Server) Addr() string {
	if s.listener == nil {
		return s.httpServer.Addr
	}
	return s.listener.Addr().String()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	if s.listener == nil {
		return nil
	}
	if err := s.httpServer.Shutdown(ctx); err != nil {
		_ = s.httpServer.Close()
		return err
	}
	return nil
}
