package surface

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/mapbridge"
)

//go:embed map.html
var mapPage []byte

// Server 本地地图表面宿主：提供内嵌地图页面，并通过 websocket
// 把页面接为 Bridge 的消息接收端
type Server struct {
	logger   *zap.Logger
	bridge   *mapbridge.Bridge
	upgrader websocket.Upgrader
	httpSrv  *http.Server
}

// NewServer 创建地图宿主
func NewServer(logger *zap.Logger, bridge *mapbridge.Bridge, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		logger: logger,
		bridge: bridge,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // 本地页面，不限制来源
			},
		},
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	router.GET("/", s.serveMapPage)
	router.GET("/ws", s.handleSurfaceSocket)

	s.httpSrv = &http.Server{Handler: router}
	return s
}

// Start 启动 HTTP 服务
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.logger.Info("Surface server listening", zap.String("addr", addr))
	return s.httpSrv.ListenAndServe()
}

// Shutdown 优雅关闭
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// serveMapPage 返回内嵌地图页面
func (s *Server) serveMapPage(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", mapPage)
}

// surfaceEvent 表面回传的生命周期事件
type surfaceEvent struct {
	Type string `json:"type"`
}

// handleSurfaceSocket 把 websocket 连接接入 Bridge：
// 连接即为消息接收端，页面上报 mapReady/htmlReady 后桥才开始直通
func (s *Server) handleSurfaceSocket(c *gin.Context) {
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade surface socket", zap.Error(err))
		return
	}

	sink := newSocketSink(conn)
	go sink.writePump()

	s.bridge.AttachSink(sink)
	s.logger.Info("Map surface connected")

	defer func() {
		s.bridge.SurfaceLost()
		sink.close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var event surfaceEvent
		if err := json.Unmarshal(data, &event); err != nil {
			continue
		}

		switch event.Type {
		case "mapReady", "htmlReady":
			s.bridge.SurfaceReady()
		}
	}
}

// corsMiddleware CORS 中间件
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
