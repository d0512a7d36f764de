package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/langchou/fleetgazer/internal/models"
)

// API 路径
const (
	pathLogin        = "/auth/login"
	pathRefreshToken = "/auth/refresh-token"
	pathRegister     = "/empresa/registrar-publico"
	pathVehicles     = "/app/frota/veiculos-com-rastreamento"
	pathHistory      = "/rastreamento/historico"
	pathRevisions    = "/app/manutencao/revisoes"
	pathCleanings    = "/app/manutencao/higienizacoes"
	pathCreateCar    = "/frota/veiculos"
)

// 错误定义
var (
	ErrNoRefreshToken = fmt.Errorf("no refresh token available")
)

// CredentialStore 令牌读写接口，请求前即时读取，避免并发刷新导致的脏令牌
type CredentialStore interface {
	AccessToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) (string, error)
	SetTokens(ctx context.Context, accessToken, refreshToken string) error
	Clear(ctx context.Context) error
}

// Client 后端 API 客户端，无状态；每次请求独立携带令牌
type Client struct {
	httpClient       *http.Client
	baseURL          string
	trackingBaseURL  string
	clientIdentifier string
	creds            CredentialStore
	logger           *zap.Logger
}

// NewClient 创建 API 客户端
func NewClient(baseURL, trackingBaseURL, clientIdentifier string, creds CredentialStore, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		baseURL:          strings.TrimRight(baseURL, "/"),
		trackingBaseURL:  strings.TrimRight(trackingBaseURL, "/"),
		clientIdentifier: clientIdentifier,
		creds:            creds,
		logger:           logger,
	}
}

// do 执行请求并把结果归一化：2xx 返回响应体，其余一律转为携带
// 人类可读信息的 error（优先使用服务端 message，否则回退到 HTTP 状态码）。
// 传输层失败同样作为 error 值返回，调用方永远拿到一个普通结果。
func (c *Client) do(ctx context.Context, method, path string, body any, tracking bool) ([]byte, error) {
	base := c.baseURL
	if tracking {
		base = c.trackingBaseURL
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, base+path, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-requested-with", c.clientIdentifier)

	// 请求前即时读取令牌
	token, err := c.creds.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("read access token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Request failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s", errorMessage(raw, resp.StatusCode))
	}

	// 纯文本成功响应包装成 message，便于统一解码
	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		wrapped, _ := json.Marshal(map[string]string{"message": string(raw)})
		return wrapped, nil
	}

	return raw, nil
}

// errorMessage 提取服务端错误信息，缺失时回退到状态码
func errorMessage(raw []byte, status int) string {
	var payload errorPayload
	if err := json.Unmarshal(raw, &payload); err == nil {
		switch {
		case payload.Message != "":
			return payload.Message
		case payload.Error != "":
			return payload.Error
		case payload.Mensagem != "":
			return payload.Mensagem
		}
	}
	return fmt.Sprintf("HTTP %d", status)
}

// Login 登录，成功时把两个令牌写入令牌仓库后才返回，
// 保证调用返回后后续请求即已带认证
func (c *Client) Login(ctx context.Context, email, password string) (*LoginResponse, error) {
	body := map[string]string{"email": email, "senha": password}

	raw, err := c.do(ctx, http.MethodPost, pathLogin, body, true)
	if err != nil {
		return nil, err
	}

	var login LoginResponse
	if err := json.Unmarshal(raw, &login); err != nil {
		return nil, fmt.Errorf("decode login response: %w", err)
	}

	if login.AccessToken != "" && login.RefreshToken != "" {
		if err := c.creds.SetTokens(ctx, login.AccessToken, login.RefreshToken); err != nil {
			return nil, fmt.Errorf("store tokens: %w", err)
		}
	} else {
		c.logger.Warn("Login response missing tokens")
	}

	return &login, nil
}

// RegisterCompany 注册新账号
func (c *Client) RegisterCompany(ctx context.Context, name, email, password, address string) error {
	body := map[string]string{"nome": name, "email": email, "senha": password}
	if address != "" {
		body["endereco"] = address
	}

	if _, err := c.do(ctx, http.MethodPost, pathRegister, body, false); err != nil {
		return err
	}
	return nil
}

// Refresh 用刷新令牌换取新的访问令牌。服务端未返回新刷新令牌时
// 保留原值，不允许用空串覆盖
func (c *Client) Refresh(ctx context.Context) error {
	refreshToken, err := c.creds.RefreshToken(ctx)
	if err != nil {
		return fmt.Errorf("read refresh token: %w", err)
	}
	if refreshToken == "" {
		return ErrNoRefreshToken
	}

	raw, err := c.do(ctx, http.MethodPost, pathRefreshToken, map[string]string{"refreshToken": refreshToken}, false)
	if err != nil {
		return err
	}

	var result struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return fmt.Errorf("decode refresh response: %w", err)
	}
	if result.AccessToken == "" {
		return fmt.Errorf("refresh response missing access token")
	}

	next := result.RefreshToken
	if next == "" {
		next = refreshToken
	}

	if err := c.creds.SetTokens(ctx, result.AccessToken, next); err != nil {
		return fmt.Errorf("store tokens: %w", err)
	}
	return nil
}

// ListVehicles 获取车队车辆列表（含实时位置）
func (c *Client) ListVehicles(ctx context.Context) ([]VehicleRecord, error) {
	raw, err := c.do(ctx, http.MethodGet, pathVehicles, nil, true)
	if err != nil {
		return nil, err
	}

	var records []VehicleRecord
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, fmt.Errorf("decode vehicles: %w", err)
	}
	return records, nil
}

// VehicleHistory 获取定位历史
func (c *Client) VehicleHistory(ctx context.Context, userID int64, limit int) ([]HistoryPoint, error) {
	path := fmt.Sprintf("%s?usuarioId=%d&limite=%d", pathHistory, userID, limit)

	raw, err := c.do(ctx, http.MethodGet, path, nil, true)
	if err != nil {
		return nil, err
	}

	points, err := decodeHistory(raw)
	if err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	return points, nil
}

// apiDate 维保接口的日期编码格式
func apiDate(t time.Time) string {
	return t.UTC().Format("2006-01-02") + "T00:00:00.000Z"
}

// CreateRevision 登记保养记录
func (c *Client) CreateRevision(ctx context.Context, draft models.RevisionDraft) error {
	body := map[string]any{
		"veiculoId":   draft.VehicleID,
		"dataRevisao": apiDate(draft.Date),
		"kmRevisao":   draft.Km,
		"tipoRevisao": draft.Kind,
		"status":      "REALIZADA",
	}
	if draft.Description != "" {
		body["descricao"] = draft.Description
	}
	if draft.Cost != nil {
		body["valor"] = *draft.Cost
	}
	if draft.Workshop != "" {
		body["oficina"] = draft.Workshop
	}
	if draft.WorkshopPhone != "" {
		body["telefoneOficina"] = draft.WorkshopPhone
	}
	if draft.InvoiceNumber != "" {
		body["notaFiscal"] = draft.InvoiceNumber
	}
	if draft.NextRevisionKm != nil {
		body["proximaRevisaoKm"] = *draft.NextRevisionKm
	}
	if draft.NextRevisionAt != nil {
		body["proximaRevisaoData"] = apiDate(*draft.NextRevisionAt)
	}

	if _, err := c.do(ctx, http.MethodPost, pathRevisions, body, false); err != nil {
		return err
	}
	return nil
}

// CreateCleaning 登记清洁记录
func (c *Client) CreateCleaning(ctx context.Context, draft models.CleaningDraft) error {
	body := map[string]any{
		"veiculoId":        draft.VehicleID,
		"dataHigienizacao": apiDate(draft.Date),
		"tipoHigienizacao": draft.Kind,
	}
	if draft.Description != "" {
		body["descricao"] = draft.Description
	}
	if draft.Cost != nil {
		body["valor"] = *draft.Cost
	}
	if draft.Location != "" {
		body["local"] = draft.Location
	}
	if draft.LocationPhone != "" {
		body["telefoneLocal"] = draft.LocationPhone
	}
	if draft.NextCleaningAt != nil {
		body["proximaHigienizacaoData"] = apiDate(*draft.NextCleaningAt)
	}

	if _, err := c.do(ctx, http.MethodPost, pathCleanings, body, false); err != nil {
		return err
	}
	return nil
}

// CreateVehicle 在后端车队中登记新车辆
func (c *Client) CreateVehicle(ctx context.Context, draft models.VehicleDraft) error {
	body := map[string]any{
		"placa":  draft.Plate,
		"marca":  draft.Brand,
		"modelo": draft.Model,
		"status": "ATIVO",
	}
	if draft.Color != "" {
		body["cor"] = draft.Color
	}
	if draft.Year != "" {
		body["anoFabricacao"] = draft.Year
	}

	if _, err := c.do(ctx, http.MethodPost, pathCreateCar, body, false); err != nil {
		return err
	}
	return nil
}
