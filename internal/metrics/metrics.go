// Package metrics 提供Prometheus监控指标
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/0pancd04/rota-ai-desertation/pkg/travel"
)

const namespace = "rota"

var (
	registry = prometheus.NewRegistry()

	// 请求计数器
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP请求总数",
	}, []string{"method", "path", "status"})

	// 请求延迟直方图
	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP请求延迟",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
	}, []string{"method", "path"})

	// 排班生成
	rotaGenerations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "generation_total",
		Help:      "周排班生成次数",
	}, []string{"status"})

	rotaDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "generation_duration_seconds",
		Help:      "周排班生成耗时",
		Buckets:   []float64{0.1, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
	})

	assignmentsCreated = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "assignments_created_total",
		Help:      "生成的上门安排数",
	})

	// 重新分配
	reassignments = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reassignments_total",
		Help:      "重新分配请求中的记录数",
	}, []string{"result"})

	// 路程时间查询来源
	travelLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "travel_lookups_total",
		Help:      "路程时间查询次数",
	}, []string{"source"})

	// 活动任务数
	activeTasks = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_tasks",
		Help:      "当前运行中的排班任务数",
	})

	// 公平性与需求满足度
	fairnessGini = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "visit_minutes_gini",
		Help:      "员工上门分钟数基尼系数",
	})

	demandSatisfaction = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "demand_satisfaction_percent",
		Help:      "护理需求满足度",
	})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		rotaGenerations,
		rotaDuration,
		assignmentsCreated,
		reassignments,
		travelLookups,
		activeTasks,
		fairnessGini,
		demandSatisfaction,
	)
}

// Registry 返回指标注册表
func Registry() *prometheus.Registry {
	return registry
}

// Handler 返回 /metrics 处理器
func Handler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

// RecordRequestMetrics 记录HTTP请求指标
func RecordRequestMetrics(method, path string, status int, duration time.Duration) {
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRotaGeneration 记录一次周排班生成
func RecordRotaGeneration(success bool, duration time.Duration, created int) {
	status := "success"
	if !success {
		status = "failure"
	}
	rotaGenerations.WithLabelValues(status).Inc()
	rotaDuration.Observe(duration.Seconds())
	assignmentsCreated.Add(float64(created))
}

// RecordReassignment 记录重新分配结果
func RecordReassignment(requested, updated int) {
	reassignments.WithLabelValues("updated").Add(float64(updated))
	if skipped := requested - updated; skipped > 0 {
		reassignments.WithLabelValues("skipped").Add(float64(skipped))
	}
}

// TravelLookupRecorder 返回统计路程时间查询来源的记录器
func TravelLookupRecorder() travel.LookupRecorder {
	return func(source string) {
		travelLookups.WithLabelValues(source).Inc()
	}
}

// TaskStarted 任务开始
func TaskStarted() {
	activeTasks.Inc()
}

// TaskFinished 任务结束
func TaskFinished() {
	activeTasks.Dec()
}

// SetRotaQuality 更新排班质量指标
func SetRotaQuality(gini, satisfaction float64) {
	fairnessGini.Set(gini)
	demandSatisfaction.Set(satisfaction)
}
