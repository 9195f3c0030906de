package travel

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/0pancd04/rota-ai-desertation/pkg/model"
)

// TableProvider 固定出行时间表（双向对称），表中没有的组合使用兜底估算
type TableProvider struct {
	minutes  map[string]int
	fallback Provider
	recorder LookupRecorder
}

// TableEntry 出行时间表条目
type TableEntry struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Minutes int    `json:"minutes"`
}

// NewTableProvider 创建出行时间表，fallback 为 nil 时使用启发式估算
func NewTableProvider(fallback Provider) *TableProvider {
	if fallback == nil {
		fallback = NewHeuristicProvider()
	}
	return &TableProvider{minutes: make(map[string]int), fallback: fallback}
}

// LoadTable 从 JSON 数组读取出行时间表
func LoadTable(r io.Reader, fallback Provider) (*TableProvider, error) {
	var entries []TableEntry
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, fmt.Errorf("解析出行时间表失败: %w", err)
	}
	t := NewTableProvider(fallback)
	for _, e := range entries {
		t.Set(e.From, e.To, e.Minutes)
	}
	return t, nil
}

// WithRecorder 设置查询记录器
func (t *TableProvider) WithRecorder(r LookupRecorder) *TableProvider {
	t.recorder = r
	return t
}

// Set 设置两地之间的出行时间
func (t *TableProvider) Set(a, b string, minutes int) *TableProvider {
	t.minutes[a+"|"+b] = minutes
	t.minutes[b+"|"+a] = minutes
	return t
}

// TravelTime 查表
func (t *TableProvider) TravelTime(ctx context.Context, origin, destination string, mode model.TransportMode) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if model.SameAddress(origin, destination) {
		return 0, nil
	}
	if m, ok := t.minutes[origin+"|"+destination]; ok {
		if t.recorder != nil {
			t.recorder(SourceTable)
		}
		return Clamp(m), nil
	}
	return t.fallback.TravelTime(ctx, origin, destination, mode)
}
