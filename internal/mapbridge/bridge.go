package mapbridge

import (
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/models"
)

// 消息类型（与地图页面约定的协议）
const (
	MsgTypeInit            = "init"               // 初始化视角
	MsgTypeUpdateVeiculos  = "updateVeiculos"     // 整体替换车辆标记
	MsgTypeUpdateHistorico = "updateHistorico"    // 整体替换轨迹
	MsgTypeClearHistorico  = "clearHistorico"     // 清除轨迹
	MsgTypeCenterMap       = "centerMap"          // 重定视角
	MsgTypeAddPonto        = "addPontoEspecifico" // 单个高亮标记（替换前一个）
	MsgTypeChangeMapType   = "changeMapType"      // 切换底图
)

// 底图类型
const (
	LayerStandard  = "standard"
	LayerSatellite = "satellite"
)

// Message 发往地图表面的声明式指令
type Message struct {
	Type       string          `json:"type"`
	Center     []float64       `json:"center,omitempty"`
	Zoom       int             `json:"zoom,omitempty"`
	Latitude   *float64        `json:"latitude,omitempty"`
	Longitude  *float64        `json:"longitude,omitempty"`
	Veiculos   []VehicleMarker `json:"veiculos,omitempty"`
	SelectedID string          `json:"selectedId,omitempty"`
	Historico  []PathPoint     `json:"historico,omitempty"`
	MapType    string          `json:"mapType,omitempty"`
}

// VehicleMarker 地图上的车辆标记
type VehicleMarker struct {
	ID        string  `json:"id"`
	Plate     string  `json:"placa"`
	Brand     string  `json:"marca"`
	Model     string  `json:"modelo"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// PathPoint 轨迹点
type PathPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Sink 消息接收端（通常是承载地图页面的 websocket 连接）
type Sink interface {
	Send(message []byte) error
}

// Bridge 到地图渲染表面的单向消息通道。表面就绪前所有指令
// 按序缓冲，就绪后先冲刷再直通。投递即忘：发送失败只记日志
type Bridge struct {
	logger *zap.Logger

	mu      sync.Mutex
	sink    Sink
	ready   bool
	pending [][]byte
}

// NewBridge 创建桥
func NewBridge(logger *zap.Logger) *Bridge {
	return &Bridge{logger: logger}
}

// AttachSink 接入消息接收端（表面重连时替换旧端）
func (b *Bridge) AttachSink(sink Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sink = sink
}

// SurfaceReady 表面完成自身初始化，可以接收指令；冲刷缓冲队列
func (b *Bridge) SurfaceReady() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ready = true
	b.logger.Info("Map surface ready", zap.Int("pending", len(b.pending)))

	for _, msg := range b.pending {
		b.deliver(msg)
	}
	b.pending = nil
}

// SurfaceLost 表面断开，回到缓冲模式
func (b *Bridge) SurfaceLost() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ready = false
	b.sink = nil
	b.logger.Info("Map surface lost, buffering messages")
}

// Ready 表面是否就绪
func (b *Bridge) Ready() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ready
}

// send 编码并投递消息；表面未就绪时入队
func (b *Bridge) send(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		b.logger.Error("Failed to marshal bridge message", zap.Error(err))
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.ready || b.sink == nil {
		b.pending = append(b.pending, data)
		return
	}
	b.deliver(data)
}

// deliver 直接投递，调用方需持锁
func (b *Bridge) deliver(data []byte) {
	if b.sink == nil {
		b.pending = append(b.pending, data)
		return
	}
	if err := b.sink.Send(data); err != nil {
		b.logger.Warn("Failed to deliver message to surface", zap.Error(err))
	}
}

// Init 初始化视角
func (b *Bridge) Init(lat, lon float64, zoom int) {
	b.send(Message{Type: MsgTypeInit, Center: []float64{lat, lon}, Zoom: zoom})
}

// UpdateVehicles 整体替换车辆标记；无坐标的车辆不出现在地图上
func (b *Bridge) UpdateVehicles(vehicles []models.Vehicle, selectedID string) {
	markers := make([]VehicleMarker, 0, len(vehicles))
	for _, v := range vehicles {
		if v.Position == nil {
			continue
		}
		markers = append(markers, VehicleMarker{
			ID:        v.ID,
			Plate:     v.Plate,
			Brand:     v.Brand,
			Model:     v.Model,
			Latitude:  v.Position.Latitude,
			Longitude: v.Position.Longitude,
		})
	}
	b.send(Message{Type: MsgTypeUpdateVeiculos, Veiculos: markers, SelectedID: selectedID})
}

// UpdateHistory 整体替换轨迹。多点时表面自行计算包围盒适配视口，
// 单点时居中到该点
func (b *Bridge) UpdateHistory(points []PathPoint) {
	b.send(Message{Type: MsgTypeUpdateHistorico, Historico: points})
}

// ClearHistory 清除轨迹
func (b *Bridge) ClearHistory() {
	b.send(Message{Type: MsgTypeClearHistorico})
}

// CenterMap 重定视角
func (b *Bridge) CenterMap(lat, lon float64, zoom int) {
	b.send(Message{Type: MsgTypeCenterMap, Latitude: &lat, Longitude: &lon, Zoom: zoom})
}

// AddPointMarker 放置单个高亮标记，替换之前的那个
func (b *Bridge) AddPointMarker(lat, lon float64) {
	b.send(Message{Type: MsgTypeAddPonto, Latitude: &lat, Longitude: &lon})
}

// ChangeLayer 切换底图类型
func (b *Bridge) ChangeLayer(kind string) {
	b.send(Message{Type: MsgTypeChangeMapType, MapType: kind})
}
