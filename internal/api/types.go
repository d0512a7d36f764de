package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// LoginResponse 登录响应
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	User         *UserPayload `json:"usuario"`
	Platform     string       `json:"plataforma"`
}

// UserPayload 后端返回的用户信息
type UserPayload struct {
	ID    int64  `json:"id"`
	Name  string `json:"nome"`
	Email string `json:"email"`
	Phone string `json:"telefone"`
}

// VehicleRecord 车队接口返回的单条车辆记录
type VehicleRecord struct {
	ID           int64      `json:"id"`
	Plate        string     `json:"placa"`
	Brand        string     `json:"marca"`
	Model        string     `json:"modelo"`
	Color        *string    `json:"cor"`
	Year         *int       `json:"ano"`
	Latitude     *float64   `json:"latitude"`
	Longitude    *float64   `json:"longitude"`
	LastUpdateAt *time.Time `json:"ultimaAtualizacao"`
	Speed        *float64   `json:"velocidade"`
	Heading      *float64   `json:"curso"`
	DeviceID     *int64     `json:"dispositivoId"`
	DeviceName   string     `json:"dispositivoNome"`
	DeviceSerial string     `json:"dispositivoSerial"`
	Status       string     `json:"status"`
}

// FlexFloat 兼容数字与字符串两种编码的浮点值
// （历史接口部分字段以字符串返回）
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	if len(data) == 0 || string(data) == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return err
	}
	*f = FlexFloat(v)
	return nil
}

// HistoryPoint 定位历史接口返回的单个采样点
type HistoryPoint struct {
	Latitude  FlexFloat  `json:"latitude"`
	Longitude FlexFloat  `json:"longitude"`
	Timestamp *time.Time `json:"timestamp"`
	Speed     *FlexFloat `json:"speed"`
	Heading   *FlexFloat `json:"heading"`
	Accuracy  *FlexFloat `json:"accuracy"`
	Altitude  *FlexFloat `json:"altitude"`
}

// historyEnvelope 历史接口既可能直接返回数组，也可能包一层 data
type historyEnvelope struct {
	Data []HistoryPoint `json:"data"`
}

// decodeHistory 解析历史响应的两种形态
func decodeHistory(raw []byte) ([]HistoryPoint, error) {
	var points []HistoryPoint
	if err := json.Unmarshal(raw, &points); err == nil {
		return points, nil
	}
	var env historyEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return env.Data, nil
}

// errorPayload 后端错误响应常见字段
type errorPayload struct {
	Message  string `json:"message"`
	Error    string `json:"error"`
	Mensagem string `json:"mensagem"`
}
