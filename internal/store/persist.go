package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/models"
	"github.com/langchou/fleetgazer/internal/repository"
)

// 快照名称与当前 schema 版本
const (
	snapshotName    = "rastreamento"
	snapshotVersion = 1
)

// snapshot 持久化投影。时间字段一律编码为 ISO-8601 字符串，
// 反序列化时经 restore 统一还原
type snapshot struct {
	Version                int               `json:"version"`
	IsAuthenticated        bool              `json:"is_authenticated"`
	HasCompletedOnboarding bool              `json:"has_completed_onboarding"`
	User                   *models.User      `json:"user,omitempty"`
	Vehicles               []snapshotVehicle `json:"vehicles"`
}

type snapshotVehicle struct {
	ID           string          `json:"id"`
	Plate        string          `json:"plate"`
	Brand        string          `json:"brand"`
	Model        string          `json:"model"`
	Color        string          `json:"color,omitempty"`
	Year         string          `json:"year,omitempty"`
	Status       string          `json:"status,omitempty"`
	Latitude     *float64        `json:"latitude,omitempty"`
	Longitude    *float64        `json:"longitude,omitempty"`
	LastUpdateAt string          `json:"last_update_at,omitempty"`
	RecentTrack  []snapshotPoint `json:"recent_track,omitempty"`
	Speed        *float64        `json:"speed,omitempty"`
	Heading      *float64        `json:"heading,omitempty"`
	DeviceID     *int64          `json:"device_id,omitempty"`
	DeviceName   string          `json:"device_name,omitempty"`
	DeviceSerial string          `json:"device_serial,omitempty"`
}

type snapshotPoint struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Timestamp string   `json:"timestamp"`
	Speed     *float64 `json:"speed,omitempty"`
	Heading   *float64 `json:"heading,omitempty"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
}

// makeSnapshot 生成当前状态的可序列化投影，调用方需持有读锁
func (s *Store) makeSnapshot() snapshot {
	snap := snapshot{
		Version:                snapshotVersion,
		IsAuthenticated:        s.session.Authenticated(),
		HasCompletedOnboarding: s.hasCompletedOnboarding,
		User:                   s.user,
		Vehicles:               make([]snapshotVehicle, 0, len(s.vehicles)),
	}

	for _, v := range s.vehicles {
		sv := snapshotVehicle{
			ID:           v.ID,
			Plate:        v.Plate,
			Brand:        v.Brand,
			Model:        v.Model,
			Color:        v.Color,
			Year:         v.Year,
			Status:       string(v.Status),
			Speed:        v.Speed,
			Heading:      v.Heading,
			DeviceID:     v.DeviceID,
			DeviceName:   v.DeviceName,
			DeviceSerial: v.DeviceSerial,
		}
		if v.Position != nil {
			lat, lon := v.Position.Latitude, v.Position.Longitude
			sv.Latitude, sv.Longitude = &lat, &lon
		}
		if v.LastUpdateAt != nil {
			sv.LastUpdateAt = v.LastUpdateAt.UTC().Format(time.RFC3339Nano)
		}
		for _, p := range v.RecentTrack {
			sv.RecentTrack = append(sv.RecentTrack, snapshotPoint{
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				Timestamp: p.Timestamp.UTC().Format(time.RFC3339Nano),
				Speed:     p.Speed,
				Heading:   p.Heading,
				Accuracy:  p.Accuracy,
			})
		}
		snap.Vehicles = append(snap.Vehicles, sv)
	}

	return snap
}

// restore 还原快照。所有缺省与类型矫正集中在这里：
// 缺失 status 默认 aguardando_contato，缺失轨迹默认空序列，
// 时间字符串解析失败回退为当前时间
func restore(snap snapshot) (user *models.User, vehicles []models.Vehicle, onboarded bool, authenticated bool) {
	vehicles = make([]models.Vehicle, 0, len(snap.Vehicles))

	for _, sv := range snap.Vehicles {
		status := models.VehicleStatus(sv.Status)
		if status == "" {
			status = models.StatusAwaitingContact
		}

		v := models.Vehicle{
			ID:           sv.ID,
			Plate:        sv.Plate,
			Brand:        sv.Brand,
			Model:        sv.Model,
			Color:        sv.Color,
			Year:         sv.Year,
			Status:       status,
			Speed:        sv.Speed,
			Heading:      sv.Heading,
			DeviceID:     sv.DeviceID,
			DeviceName:   sv.DeviceName,
			DeviceSerial: sv.DeviceSerial,
			RecentTrack:  []models.TrackPoint{},
		}
		if sv.Latitude != nil && sv.Longitude != nil {
			v.Position = &models.Position{Latitude: *sv.Latitude, Longitude: *sv.Longitude}
		}
		if t, ok := parseTimestamp(sv.LastUpdateAt); ok {
			v.LastUpdateAt = &t
		}
		for _, p := range sv.RecentTrack {
			ts, ok := parseTimestamp(p.Timestamp)
			if !ok {
				ts = time.Now()
			}
			v.RecentTrack = append(v.RecentTrack, models.TrackPoint{
				Latitude:  p.Latitude,
				Longitude: p.Longitude,
				Timestamp: ts,
				Speed:     p.Speed,
				Heading:   p.Heading,
				Accuracy:  p.Accuracy,
			})
		}

		vehicles = append(vehicles, v)
	}

	// 不变式：认证态必须伴随用户信息
	authenticated = snap.IsAuthenticated && snap.User != nil

	return snap.User, vehicles, snap.HasCompletedOnboarding, authenticated
}

// parseTimestamp 解析 ISO-8601 时间串
func parseTimestamp(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// persist 把当前状态写入快照仓库；失败只记日志，不影响调用方
func (s *Store) persist(ctx context.Context) {
	s.mu.RLock()
	snap := s.makeSnapshot()
	s.mu.RUnlock()

	data, err := json.Marshal(snap)
	if err != nil {
		s.logger.Error("Failed to encode snapshot", zap.Error(err))
		return
	}

	if err := s.snapshots.Save(ctx, snapshotName, data); err != nil {
		s.logger.Error("Failed to save snapshot", zap.Error(err))
	}
}

// Load 从快照仓库恢复状态。快照不存在时保持初始空状态
func (s *Store) Load(ctx context.Context) error {
	data, err := s.snapshots.Load(ctx, snapshotName)
	if errors.Is(err, repository.ErrSnapshotNotFound) {
		return nil
	}
	if err != nil {
		return err
	}

	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("decode snapshot: %w", err)
	}

	user, vehicles, onboarded, authenticated := restore(snap)

	initial := SessionAnonymous
	if authenticated {
		initial = SessionAuthenticated
	}

	s.mu.Lock()
	s.session = newSessionMachine(initial)
	s.user = user
	s.vehicles = vehicles
	s.hasCompletedOnboarding = onboarded
	s.mu.Unlock()

	s.logger.Info("State rehydrated",
		zap.Bool("authenticated", authenticated),
		zap.Int("vehicles", len(vehicles)))

	s.notify()
	return nil
}
