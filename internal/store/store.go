package store

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/api"
	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/repository"
)

// 错误定义
var (
	ErrMissingUser = fmt.Errorf("login response missing user")
)

// Store 车队追踪状态容器：会话、用户、车辆名册及其近期轨迹。
// 可注入（非单例），便于测试隔离。自身不持有任何定时器，
// 轮询节奏由上层（屏幕层）驱动
type Store struct {
	logger    *zap.Logger
	api       *api.Client
	creds     api.CredentialStore
	snapshots *repository.SnapshotRepository
	trackCap  int

	mu                     sync.RWMutex
	session                *sessionMachine
	user                   *models.User
	vehicles               []models.Vehicle
	hasCompletedOnboarding bool

	subMu       sync.Mutex
	subscribers []chan struct{}
}

// New 创建状态容器
func New(logger *zap.Logger, apiClient *api.Client, creds api.CredentialStore, snapshots *repository.SnapshotRepository, trackCap int) *Store {
	if trackCap <= 0 {
		trackCap = 100
	}
	return &Store{
		logger:    logger,
		api:       apiClient,
		creds:     creds,
		snapshots: snapshots,
		trackCap:  trackCap,
		session:   newSessionMachine(SessionAnonymous),
		vehicles:  []models.Vehicle{},
	}
}

// Subscribe 订阅状态变更信号。通道带缓冲，未消费的信号会被合并丢弃，
// 消费方收到信号后通过读方法拉取最新状态
func (s *Store) Subscribe() <-chan struct{} {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	ch := make(chan struct{}, 1)
	s.subscribers = append(s.subscribers, ch)
	return ch
}

// notify 向所有订阅者发送非阻塞信号
func (s *Store) notify() {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subscribers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// IsAuthenticated 会话是否已认证
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Authenticated()
}

// HasCompletedOnboarding 是否已完成引导流程
func (s *Store) HasCompletedOnboarding() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hasCompletedOnboarding
}

// User 当前用户副本
func (s *Store) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}
	userCopy := *s.user
	return &userCopy
}

// Vehicles 车辆名册副本（保持服务端返回顺序）
func (s *Store) Vehicles() []models.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vehicles := make([]models.Vehicle, len(s.vehicles))
	copy(vehicles, s.vehicles)
	return vehicles
}

// Vehicle 按 id 查找车辆
func (s *Store) Vehicle(id string) (models.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, v := range s.vehicles {
		if v.ID == id {
			return v, true
		}
	}
	return models.Vehicle{}, false
}

// Login 登录。成功后会话进入认证态并立即触发一次名册刷新；
// 失败时内存会话保持未认证，不留半成品状态
func (s *Store) Login(ctx context.Context, email, password string) error {
	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if resp.User == nil {
		return ErrMissingUser
	}

	user := &models.User{
		ID:    strconv.FormatInt(resp.User.ID, 10),
		Name:  resp.User.Name,
		Email: resp.User.Email,
		Phone: resp.User.Phone,
	}

	s.mu.Lock()
	if err := s.session.Login(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.user = user
	s.hasCompletedOnboarding = true
	s.mu.Unlock()

	s.logger.Info("Login succeeded", zap.String("user_id", user.ID))

	s.persist(ctx)
	s.notify()

	s.RefreshRoster(ctx)
	return nil
}

// Register 注册，成功后用同一凭据直接登录
func (s *Store) Register(ctx context.Context, name, email, password, address string) error {
	if err := s.api.RegisterCompany(ctx, name, email, password, address); err != nil {
		return err
	}
	return s.Login(ctx, email, password)
}

// RefreshRoster 从后端拉取车辆列表并整体替换名册。
// 网络失败时吞掉错误并保留上一份名册（宁可展示过期数据）
func (s *Store) RefreshRoster(ctx context.Context) {
	records, err := s.api.ListVehicles(ctx)
	if err != nil {
		s.logger.Warn("Roster refresh failed, keeping previous roster", zap.Error(err))
		return
	}

	vehicles := make([]models.Vehicle, 0, len(records))
	for _, rec := range records {
		vehicles = append(vehicles, mapVehicleRecord(rec))
	}

	s.mu.Lock()
	// 整体替换：以本次后端结果为准，不做增量合并
	s.vehicles = vehicles
	s.mu.Unlock()

	s.logger.Debug("Roster refreshed", zap.Int("vehicles", len(vehicles)))

	s.persist(ctx)
	s.notify()
}

// mapVehicleRecord 把后端记录映射为车辆：状态由坐标推导，
// 有坐标时用最后上报位置播种单点轨迹（完整历史走独立的历史接口）
func mapVehicleRecord(rec api.VehicleRecord) models.Vehicle {
	v := models.Vehicle{
		ID:           strconv.FormatInt(rec.ID, 10),
		Plate:        rec.Plate,
		Brand:        rec.Brand,
		Model:        rec.Model,
		Status:       models.DeriveStatus(rec.Latitude, rec.Longitude, models.VehicleStatus(rec.Status)),
		LastUpdateAt: rec.LastUpdateAt,
		Speed:        rec.Speed,
		Heading:      rec.Heading,
		DeviceID:     rec.DeviceID,
		DeviceName:   rec.DeviceName,
		DeviceSerial: rec.DeviceSerial,
		RecentTrack:  []models.TrackPoint{},
	}
	if rec.Color != nil {
		v.Color = *rec.Color
	}
	if rec.Year != nil {
		v.Year = strconv.Itoa(*rec.Year)
	}

	if rec.Latitude != nil && rec.Longitude != nil {
		v.Position = &models.Position{Latitude: *rec.Latitude, Longitude: *rec.Longitude}

		seedAt := time.Now()
		if rec.LastUpdateAt != nil {
			seedAt = *rec.LastUpdateAt
		}
		v.RecentTrack = []models.TrackPoint{{
			Latitude:  *rec.Latitude,
			Longitude: *rec.Longitude,
			Timestamp: seedAt,
		}}
	}

	return v
}

// Logout 本地登出：清除令牌并重置全部状态。始终在本地成功
func (s *Store) Logout(ctx context.Context) {
	if err := s.creds.Clear(ctx); err != nil {
		s.logger.Warn("Failed to clear credentials", zap.Error(err))
	}

	s.mu.Lock()
	s.session.Logout()
	s.user = nil
	s.hasCompletedOnboarding = false
	s.vehicles = []models.Vehicle{}
	s.mu.Unlock()

	s.logger.Info("Logged out")

	s.persist(ctx)
	s.notify()
}

// CompleteOnboarding 引导完成：本地合成一辆待联系状态的车辆，
// 并把地址写入用户。纯本地操作，无网络调用
func (s *Store) CompleteOnboarding(ctx context.Context, draft models.VehicleDraft, address models.Address) {
	vehicle := newLocalVehicle(draft)

	s.mu.Lock()
	s.hasCompletedOnboarding = true
	s.vehicles = []models.Vehicle{vehicle}
	if s.user != nil {
		addr := address
		s.user.Address = &addr
	}
	s.mu.Unlock()

	s.persist(ctx)
	s.notify()
}

// AddVehicle 本地追加一辆待联系状态的车辆
func (s *Store) AddVehicle(ctx context.Context, draft models.VehicleDraft) models.Vehicle {
	vehicle := newLocalVehicle(draft)

	s.mu.Lock()
	s.vehicles = append(s.vehicles, vehicle)
	s.mu.Unlock()

	s.persist(ctx)
	s.notify()
	return vehicle
}

// RemoveVehicle 从名册移除车辆
func (s *Store) RemoveVehicle(ctx context.Context, id string) {
	s.mu.Lock()
	kept := s.vehicles[:0]
	for _, v := range s.vehicles {
		if v.ID != id {
			kept = append(kept, v)
		}
	}
	s.vehicles = kept
	s.mu.Unlock()

	s.persist(ctx)
	s.notify()
}

// newLocalVehicle 合成本地标识的车辆
func newLocalVehicle(draft models.VehicleDraft) models.Vehicle {
	return models.Vehicle{
		ID:           uuid.NewString(),
		Plate:        draft.Plate,
		Brand:        draft.Brand,
		Model:        draft.Model,
		Color:        draft.Color,
		Year:         draft.Year,
		Status:       models.StatusAwaitingContact,
		DeviceID:     draft.DeviceID,
		DeviceName:   draft.DeviceName,
		DeviceSerial: draft.DeviceSerial,
		RecentTrack:  []models.TrackPoint{},
	}
}

// UpdateVehiclePosition 增量更新车辆位置：追加轨迹点（超出上限淘汰最旧），
// 刷新当前位置与更新时间。id 不存在时为空操作，这也吞掉了登出后的迟到更新
func (s *Store) UpdateVehiclePosition(ctx context.Context, id string, lat, lon float64) {
	now := time.Now()

	s.mu.Lock()
	updated := false
	for i := range s.vehicles {
		if s.vehicles[i].ID != id {
			continue
		}

		v := &s.vehicles[i]
		v.RecentTrack = append(v.RecentTrack, models.TrackPoint{
			Latitude:  lat,
			Longitude: lon,
			Timestamp: now,
		})
		if excess := len(v.RecentTrack) - s.trackCap; excess > 0 {
			v.RecentTrack = v.RecentTrack[excess:]
		}
		v.Position = &models.Position{Latitude: lat, Longitude: lon}
		v.LastUpdateAt = &now
		updated = true
		break
	}
	s.mu.Unlock()

	if !updated {
		return
	}

	s.persist(ctx)
	s.notify()
}
