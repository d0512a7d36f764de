package models

import "time"

// VehicleStatus 车辆生命周期状态（与后端约定的枚举值）
type VehicleStatus string

const (
	StatusAwaitingContact VehicleStatus = "aguardando_contato"
	StatusInPreparation   VehicleStatus = "em_preparacao"
	StatusAwaitingPayment VehicleStatus = "aguardando_pagamento"
	StatusOnline          VehicleStatus = "online"
)

// DeriveStatus 根据后端上报的坐标推导状态：有完整坐标即 online，
// 否则沿用后端上报的生命周期状态（缺省为 aguardando_contato）
func DeriveStatus(lat, lon *float64, reported VehicleStatus) VehicleStatus {
	if lat != nil && lon != nil {
		return StatusOnline
	}
	if reported == "" {
		return StatusAwaitingContact
	}
	return reported
}

// TrackPoint 单个定位采样点，入列后不可变
type TrackPoint struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Speed     *float64  `json:"speed,omitempty"`
	Heading   *float64  `json:"heading,omitempty"`
	Accuracy  *float64  `json:"accuracy,omitempty"`
}

// Position 当前位置
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Vehicle 车辆信息及其实时位置与近期轨迹
type Vehicle struct {
	ID           string        `json:"id"`
	Plate        string        `json:"plate"`
	Brand        string        `json:"brand"`
	Model        string        `json:"model"`
	Color        string        `json:"color"`
	Year         string        `json:"year"`
	Status       VehicleStatus `json:"status"`
	Position     *Position     `json:"position,omitempty"`
	LastUpdateAt *time.Time    `json:"last_update_at,omitempty"`
	RecentTrack  []TrackPoint  `json:"recent_track,omitempty"`
	Speed        *float64      `json:"speed,omitempty"`
	Heading      *float64      `json:"heading,omitempty"`
	DeviceID     *int64        `json:"device_id,omitempty"`
	DeviceName   string        `json:"device_name,omitempty"`
	DeviceSerial string        `json:"device_serial,omitempty"`
}

// VehicleDraft 本地新建车辆的草稿（onboarding / 手动添加）
type VehicleDraft struct {
	Plate        string
	Brand        string
	Model        string
	Color        string
	Year         string
	DeviceID     *int64
	DeviceName   string
	DeviceSerial string
}

// Address 结构化地址（onboarding 完成时写入用户）
type Address struct {
	Street     string `json:"rua"`
	Number     string `json:"numero"`
	Complement string `json:"complemento,omitempty"`
	District   string `json:"bairro"`
	City       string `json:"cidade"`
	State      string `json:"estado"`
	ZipCode    string `json:"cep"`
}

// User 登录用户
type User struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Email   string   `json:"email"`
	Phone   string   `json:"phone"`
	Address *Address `json:"address,omitempty"`
}

// RevisionDraft 保养记录录入
type RevisionDraft struct {
	VehicleID      int64
	Date           time.Time
	Km             float64
	Kind           string
	Description    string
	Cost           *float64
	Workshop       string
	WorkshopPhone  string
	InvoiceNumber  string
	NextRevisionKm *float64
	NextRevisionAt *time.Time
}

// CleaningDraft 清洁/消杀记录录入
type CleaningDraft struct {
	VehicleID      int64
	Date           time.Time
	Kind           string
	Description    string
	Cost           *float64
	Location       string
	LocationPhone  string
	NextCleaningAt *time.Time
}
