package travel

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/0pancd04/rota-ai-desertation/pkg/logger"
	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// DistanceMatrixConfig 距离矩阵服务配置
type DistanceMatrixConfig struct {
	BaseURL    string        `yaml:"base_url"`
	APIKey     string        `yaml:"api_key"`
	Timeout    time.Duration `yaml:"timeout"`
	RetryCount int           `yaml:"retry_count"`
}

// DefaultDistanceMatrixConfig 返回默认配置
func DefaultDistanceMatrixConfig() DistanceMatrixConfig {
	return DistanceMatrixConfig{
		BaseURL:    "https://maps.googleapis.com",
		Timeout:    10 * time.Second,
		RetryCount: 2,
	}
}

// distanceMatrixPath 距离矩阵接口路径
const distanceMatrixPath = "/maps/api/distancematrix/json"

// DistanceMatrixResponse 距离矩阵接口响应
type DistanceMatrixResponse struct {
	Status       string              `json:"status"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Rows         []DistanceMatrixRow `json:"rows"`
}

// DistanceMatrixRow 响应行
type DistanceMatrixRow struct {
	Elements []DistanceMatrixElement `json:"elements"`
}

// DistanceMatrixElement 单个起终点组合
type DistanceMatrixElement struct {
	Status   string `json:"status"`
	Duration struct {
		Value int    `json:"value"` // 秒
		Text  string `json:"text"`
	} `json:"duration"`
}

// DistanceMatrixProvider 基于距离矩阵接口的出行时间提供者
type DistanceMatrixProvider struct {
	client   *resty.Client
	apiKey   string
	fallback Provider
	recorder LookupRecorder
}

// NewDistanceMatrixProvider 创建距离矩阵客户端，fallback 为 nil 时使用启发式估算
func NewDistanceMatrixProvider(cfg DistanceMatrixConfig, fallback Provider) *DistanceMatrixProvider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Accept", "application/json")

	if fallback == nil {
		fallback = NewHeuristicProvider()
	}

	return &DistanceMatrixProvider{
		client:   client,
		apiKey:   cfg.APIKey,
		fallback: fallback,
	}
}

// WithRecorder 设置查询记录器
func (p *DistanceMatrixProvider) WithRecorder(r LookupRecorder) *DistanceMatrixProvider {
	p.recorder = r
	return p
}

// TravelTime 查询出行时间，失败时降级
func (p *DistanceMatrixProvider) TravelTime(ctx context.Context, origin, destination string, mode model.TransportMode) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if model.SameAddress(origin, destination) {
		return 0, nil
	}

	minutes, err := p.query(ctx, origin, destination, mode)
	if err != nil {
		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		logger.Warn().
			Err(err).
			Str("origin", origin).
			Str("destination", destination).
			Str("mode", string(mode)).
			Msg("距离矩阵查询失败，使用估算值")
		return p.fallback.TravelTime(ctx, origin, destination, mode)
	}

	if p.recorder != nil {
		p.recorder(SourceAPI)
	}
	return minutes, nil
}

// query 调用距离矩阵接口
func (p *DistanceMatrixProvider) query(ctx context.Context, origin, destination string, mode model.TransportMode) (int, error) {
	var result DistanceMatrixResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"origins":      origin,
			"destinations": destination,
			"mode":         apiMode(mode),
			"key":          p.apiKey,
		}).
		SetResult(&result).
		Get(distanceMatrixPath)
	if err != nil {
		return 0, fmt.Errorf("请求距离矩阵失败: %w", err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("距离矩阵返回 HTTP %d", resp.StatusCode())
	}
	if result.Status != "OK" {
		return 0, fmt.Errorf("距离矩阵状态 %s: %s", result.Status, result.ErrorMessage)
	}
	if len(result.Rows) == 0 || len(result.Rows[0].Elements) == 0 {
		return 0, fmt.Errorf("距离矩阵结果为空")
	}

	element := result.Rows[0].Elements[0]
	if element.Status != "OK" {
		return 0, fmt.Errorf("路线不可达: %s", element.Status)
	}

	minutes := int(math.Ceil(float64(element.Duration.Value) / 60))
	return Clamp(minutes), nil
}

// apiMode 出行方式映射为接口参数
func apiMode(mode model.TransportMode) string {
	switch mode {
	case model.TransportPublicTransit:
		return "transit"
	case model.TransportBicycle:
		return "bicycling"
	case model.TransportWalking:
		return "walking"
	default:
		return "driving"
	}
}
