package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/langchou/fleetgazer/internal/api"
	"github.com/langchou/fleetgazer/internal/config"
	"github.com/langchou/fleetgazer/internal/mapbridge"
	"github.com/langchou/fleetgazer/internal/repository"
	"github.com/langchou/fleetgazer/internal/store"
	"github.com/langchou/fleetgazer/internal/surface"
)

func main() {
	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger := initLogger(cfg.Debug)
	defer logger.Sync()

	logger.Info("Starting fleetgazer", zap.String("port", cfg.ServerPort))

	// 创建 context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 打开本地数据库
	db, err := repository.New(ctx, cfg.DBPath)
	if err != nil {
		logger.Fatal("Failed to open local database", zap.Error(err))
	}
	defer db.Close()

	// 执行数据库迁移
	if err := db.Migrate(ctx); err != nil {
		logger.Fatal("Failed to migrate local database", zap.Error(err))
	}

	// 创建 Repository
	credRepo := repository.NewCredentialRepository(db)
	snapRepo := repository.NewSnapshotRepository(db)

	// 创建 API 客户端
	apiClient := api.NewClient(
		cfg.APIBaseURL,
		cfg.TrackingAPIBaseURL,
		cfg.ClientIdentifier,
		credRepo,
		logger,
	)

	// 创建状态容器并恢复上次快照
	trackingStore := store.New(logger, apiClient, credRepo, snapRepo, cfg.TrackBufferSize)
	if err := trackingStore.Load(ctx); err != nil {
		logger.Warn("Failed to rehydrate state, starting fresh", zap.Error(err))
	}

	// 创建地图桥与表面宿主
	bridge := mapbridge.NewBridge(logger)
	surfaceServer := surface.NewServer(logger, bridge, cfg.Debug)

	go func() {
		if err := surfaceServer.Start(":" + cfg.ServerPort); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start surface server", zap.Error(err))
		}
	}()

	// 可选：用环境变量里的凭据直接登录
	if email, password := os.Getenv("LOGIN_EMAIL"), os.Getenv("LOGIN_PASSWORD"); email != "" && password != "" {
		if err := trackingStore.Login(ctx, email, password); err != nil {
			logger.Error("Login failed", zap.Error(err))
		} else {
			pushHistory(ctx, logger, apiClient, trackingStore, bridge)
		}
	}

	// 初始化地图视角
	bridge.Init(cfg.MapCenterLat, cfg.MapCenterLon, cfg.MapZoom)
	pushRoster(trackingStore, bridge, cfg.MapZoom)

	// 轮询循环（屏幕层职责：store 自身不持有定时器）
	go pollLoop(ctx, trackingStore, cfg.PollInterval)

	// 订阅状态变更，同步地图标记
	go func() {
		updates := trackingStore.Subscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case <-updates:
				pushRoster(trackingStore, bridge, cfg.MapZoom)
			}
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")
	cancel()

	// 优雅关闭
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := surfaceServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("Surface server forced to shutdown", zap.Error(err))
	}

	logger.Info("Exited")
}

// pollLoop 周期性刷新名册，离开时停表避免后台空转
func pollLoop(ctx context.Context, s *store.Store, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !s.IsAuthenticated() {
				continue
			}
			s.RefreshRoster(ctx)
		}
	}
}

// pushHistory 拉取第一辆在线车辆的定位历史并画到地图上。
// 历史接口与名册播种的单点轨迹是两份独立视图，互不合并
func pushHistory(ctx context.Context, logger *zap.Logger, client *api.Client, s *store.Store, bridge *mapbridge.Bridge) {
	for _, v := range s.Vehicles() {
		if v.Position == nil {
			continue
		}

		id, err := strconv.ParseInt(v.ID, 10, 64)
		if err != nil {
			continue
		}

		points, err := client.VehicleHistory(ctx, id, 1000)
		if err != nil {
			logger.Warn("Failed to load vehicle history", zap.String("vehicle_id", v.ID), zap.Error(err))
			return
		}

		path := make([]mapbridge.PathPoint, 0, len(points))
		for _, p := range points {
			if p.Latitude == 0 && p.Longitude == 0 {
				continue
			}
			path = append(path, mapbridge.PathPoint{
				Latitude:  float64(p.Latitude),
				Longitude: float64(p.Longitude),
			})
		}
		bridge.UpdateHistory(path)
		return
	}
}

// pushRoster 把当前名册推给地图表面，并把视角对准第一辆在线车辆
func pushRoster(s *store.Store, bridge *mapbridge.Bridge, zoom int) {
	vehicles := s.Vehicles()
	bridge.UpdateVehicles(vehicles, "")

	for _, v := range vehicles {
		if v.Position != nil {
			bridge.CenterMap(v.Position.Latitude, v.Position.Longitude, zoom)
			return
		}
	}
}

// initLogger 初始化日志
func initLogger(debug bool) *zap.Logger {
	var config zap.Config
	if debug {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	logger, _ := config.Build()
	return logger
}
