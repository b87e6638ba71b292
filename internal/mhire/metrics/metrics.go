// Package metrics 提供 mhire 服务的业务指标收集。
//
// 所有 Record 方法都允许 nil 接收者，未注入指标的组件无需判空。
package metrics

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mycvconnect/mhire/pkg/resilience"
)

// Metrics 服务业务指标。
type Metrics struct {
	// 对话指标
	chatTotal   uint64 // 总对话次数
	chatErrors  uint64 // 对话错误次数
	chatStreams uint64 // 流式对话次数

	// 检索指标
	retrievalTotal    uint64  // 总检索次数
	retrievalErrors   uint64  // 检索错误次数
	retrievalDuration float64 // 检索总耗时（秒）

	// 简历解析指标
	resumeTotal  uint64
	resumeErrors uint64

	// 熔断器指标
	breakerOpens uint64 // 所有上游的熔断器打开次数

	mu            sync.Mutex
	upstreams     map[string]*upstreamStats
	verifications map[string]uint64

	durationMu sync.Mutex
	startTime  time.Time
}

type upstreamStats struct {
	calls    uint64
	errors   uint64
	duration float64
	opens    uint64
	state    resilience.State
}

var (
	global     *Metrics
	globalOnce sync.Once
)

// New creates an empty Metrics.
func New() *Metrics {
	return &Metrics{
		upstreams:     make(map[string]*upstreamStats),
		verifications: make(map[string]uint64),
		startTime:     time.Now(),
	}
}

// GetMetrics 获取全局指标实例。
func GetMetrics() *Metrics {
	globalOnce.Do(func() {
		global = New()
	})
	return global
}

// RecordChat 记录一次对话请求。
func (m *Metrics) RecordChat(stream bool, err error) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.chatTotal, 1)
	if stream {
		atomic.AddUint64(&m.chatStreams, 1)
	}
	if err != nil {
		atomic.AddUint64(&m.chatErrors, 1)
	}
}

// RecordRetrieval 记录检索操作。
func (m *Metrics) RecordRetrieval(d time.Duration, err error) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.retrievalTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.retrievalErrors, 1)
		return
	}
	m.durationMu.Lock()
	m.retrievalDuration += d.Seconds()
	m.durationMu.Unlock()
}

// RecordResume 记录简历解析。
func (m *Metrics) RecordResume(err error) {
	if m == nil {
		return
	}
	atomic.AddUint64(&m.resumeTotal, 1)
	if err != nil {
		atomic.AddUint64(&m.resumeErrors, 1)
	}
}

// RecordVerification counts one verification by outcome, such as
// "match", "no_match", "duplicate_found" or "error".
func (m *Metrics) RecordVerification(outcome string) {
	if m == nil || outcome == "" {
		return
	}
	m.mu.Lock()
	m.verifications[outcome]++
	m.mu.Unlock()
}

// ObserveCall records one upstream attempt.
func (m *Metrics) ObserveCall(upstream string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.upstream(upstream)
	u.calls++
	u.duration += d.Seconds()
	if err != nil {
		u.errors++
	}
}

// ObserveBreaker records a breaker transition.
func (m *Metrics) ObserveBreaker(upstream string, _, to resilience.State) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u := m.upstream(upstream)
	u.state = to
	if to == resilience.StateOpen {
		u.opens++
		atomic.AddUint64(&m.breakerOpens, 1)
	}
}

// upstream requires m.mu.
func (m *Metrics) upstream(name string) *upstreamStats {
	u, ok := m.upstreams[name]
	if !ok {
		u = &upstreamStats{}
		m.upstreams[name] = u
	}
	return u
}

type upstreamSnapshot struct {
	name string
	upstreamStats
}

func (m *Metrics) snapshot() ([]upstreamSnapshot, map[string]uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ups := make([]upstreamSnapshot, 0, len(m.upstreams))
	for name, u := range m.upstreams {
		ups = append(ups, upstreamSnapshot{name: name, upstreamStats: *u})
	}
	slices.SortFunc(ups, func(a, b upstreamSnapshot) int { return strings.Compare(a.name, b.name) })
	outcomes := make(map[string]uint64, len(m.verifications))
	for k, v := range m.verifications {
		outcomes[k] = v
	}
	return ups, outcomes
}

// Export 导出 Prometheus 文本格式指标。
func (m *Metrics) Export(namespace string) string {
	var sb strings.Builder
	p := namespace

	counter := func(name, help string, v uint64) {
		fmt.Fprintf(&sb, "# HELP %s_%s %s\n", p, name, help)
		fmt.Fprintf(&sb, "# TYPE %s_%s counter\n", p, name)
		fmt.Fprintf(&sb, "%s_%s %d\n\n", p, name, v)
	}

	counter("chat_requests_total", "Total number of chat requests.", atomic.LoadUint64(&m.chatTotal))
	counter("chat_errors_total", "Number of failed chat requests.", atomic.LoadUint64(&m.chatErrors))
	counter("chat_streams_total", "Number of streamed chat requests.", atomic.LoadUint64(&m.chatStreams))
	counter("retrieval_total", "Total number of retrievals.", atomic.LoadUint64(&m.retrievalTotal))
	counter("retrieval_errors_total", "Number of retrieval errors.", atomic.LoadUint64(&m.retrievalErrors))

	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	start := m.startTime
	m.durationMu.Unlock()
	fmt.Fprintf(&sb, "# HELP %s_retrieval_duration_seconds_total Total retrieval duration.\n", p)
	fmt.Fprintf(&sb, "# TYPE %s_retrieval_duration_seconds_total counter\n", p)
	fmt.Fprintf(&sb, "%s_retrieval_duration_seconds_total %.6f\n\n", p, retrievalDuration)

	counter("resume_requests_total", "Total number of resume parses.", atomic.LoadUint64(&m.resumeTotal))
	counter("resume_errors_total", "Number of failed resume parses.", atomic.LoadUint64(&m.resumeErrors))
	counter("circuit_breaker_opens_total", "Number of circuit breaker opens across upstreams.", atomic.LoadUint64(&m.breakerOpens))

	ups, outcomes := m.snapshot()

	// 上游指标
	if len(ups) > 0 {
		fmt.Fprintf(&sb, "# HELP %s_upstream_calls_total Upstream call attempts.\n", p)
		fmt.Fprintf(&sb, "# TYPE %s_upstream_calls_total counter\n", p)
		for _, u := range ups {
			fmt.Fprintf(&sb, "%s_upstream_calls_total{upstream=%q} %d\n", p, u.name, u.calls)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "# HELP %s_upstream_errors_total Failed upstream call attempts.\n", p)
		fmt.Fprintf(&sb, "# TYPE %s_upstream_errors_total counter\n", p)
		for _, u := range ups {
			fmt.Fprintf(&sb, "%s_upstream_errors_total{upstream=%q} %d\n", p, u.name, u.errors)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "# HELP %s_upstream_duration_seconds_total Total upstream call duration.\n", p)
		fmt.Fprintf(&sb, "# TYPE %s_upstream_duration_seconds_total counter\n", p)
		for _, u := range ups {
			fmt.Fprintf(&sb, "%s_upstream_duration_seconds_total{upstream=%q} %.6f\n", p, u.name, u.duration)
		}
		sb.WriteString("\n")
		fmt.Fprintf(&sb, "# HELP %s_circuit_breaker_state Circuit breaker state (0=closed, 1=open, 2=half-open).\n", p)
		fmt.Fprintf(&sb, "# TYPE %s_circuit_breaker_state gauge\n", p)
		for _, u := range ups {
			fmt.Fprintf(&sb, "%s_circuit_breaker_state{upstream=%q} %d\n", p, u.name, int(u.state))
		}
		sb.WriteString("\n")
	}

	// 验证结果
	if len(outcomes) > 0 {
		keys := make([]string, 0, len(outcomes))
		for k := range outcomes {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		fmt.Fprintf(&sb, "# HELP %s_verifications_total Face verifications by outcome.\n", p)
		fmt.Fprintf(&sb, "# TYPE %s_verifications_total counter\n", p)
		for _, k := range keys {
			fmt.Fprintf(&sb, "%s_verifications_total{outcome=%q} %d\n", p, k, outcomes[k])
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "# HELP %s_uptime_seconds Service uptime in seconds.\n", p)
	fmt.Fprintf(&sb, "# TYPE %s_uptime_seconds gauge\n", p)
	fmt.Fprintf(&sb, "%s_uptime_seconds %.2f\n", p, time.Since(start).Seconds())

	return sb.String()
}

// Stats 返回当前统计信息（用于 API）。
func (m *Metrics) Stats() map[string]any {
	m.durationMu.Lock()
	retrievalDuration := m.retrievalDuration
	start := m.startTime
	m.durationMu.Unlock()

	retrievalTotal := atomic.LoadUint64(&m.retrievalTotal)
	retrievalErrors := atomic.LoadUint64(&m.retrievalErrors)
	avgRetrieval := 0.0
	if ok := retrievalTotal - retrievalErrors; ok > 0 {
		avgRetrieval = retrievalDuration / float64(ok)
	}

	ups, outcomes := m.snapshot()
	upstreams := make(map[string]any, len(ups))
	for _, u := range ups {
		avg := 0.0
		if u.calls > 0 {
			avg = u.duration / float64(u.calls)
		}
		upstreams[u.name] = map[string]any{
			"calls":             u.calls,
			"errors":            u.errors,
			"avg_duration_secs": avg,
			"breaker_state":     u.state.String(),
			"breaker_opens":     u.opens,
		}
	}

	return map[string]any{
		"chat": map[string]any{
			"total":   atomic.LoadUint64(&m.chatTotal),
			"streams": atomic.LoadUint64(&m.chatStreams),
			"errors":  atomic.LoadUint64(&m.chatErrors),
		},
		"retrieval": map[string]any{
			"total":               retrievalTotal,
			"total_duration_secs": retrievalDuration,
			"avg_duration_secs":   avgRetrieval,
			"errors":              retrievalErrors,
		},
		"resume": map[string]any{
			"total":  atomic.LoadUint64(&m.resumeTotal),
			"errors": atomic.LoadUint64(&m.resumeErrors),
		},
		"upstreams": upstreams,
		"circuit_breaker": map[string]any{
			"opens": atomic.LoadUint64(&m.breakerOpens),
		},
		"verifications":  outcomes,
		"uptime_seconds": time.Since(start).Seconds(),
	}
}

// Reset 重置所有指标（仅用于测试）。
func (m *Metrics) Reset() {
	atomic.StoreUint64(&m.chatTotal, 0)
	atomic.StoreUint64(&m.chatErrors, 0)
	atomic.StoreUint64(&m.chatStreams, 0)
	atomic.StoreUint64(&m.retrievalTotal, 0)
	atomic.StoreUint64(&m.retrievalErrors, 0)
	atomic.StoreUint64(&m.resumeTotal, 0)
	atomic.StoreUint64(&m.resumeErrors, 0)
	atomic.StoreUint64(&m.breakerOpens, 0)

	m.mu.Lock()
	m.upstreams = make(map[string]*upstreamStats)
	m.verifications = make(map[string]uint64)
	m.mu.Unlock()

	m.durationMu.Lock()
	m.retrievalDuration = 0
	m.startTime = time.Now()
	m.durationMu.Unlock()
}

var _ resilience.Observer = (*Metrics)(nil)
