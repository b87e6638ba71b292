package metrics

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycvconnect/mhire/pkg/resilience"
	"github.com/mycvconnect/mhire/pkg/utils/httpclient"
)

func TestGetMetrics(t *testing.T) {
	// 全局单例
	assert.Same(t, GetMetrics(), GetMetrics())
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordChat(false, nil)
		m.RecordRetrieval(time.Millisecond, nil)
		m.RecordResume(nil)
		m.RecordVerification("match")
		m.ObserveCall("chat", time.Millisecond, nil)
		m.ObserveBreaker("chat", resilience.StateClosed, resilience.StateOpen)
	})
}

func TestRecordChatAndRetrieval(t *testing.T) {
	m := New()

	m.RecordChat(false, nil)
	m.RecordChat(true, nil)
	m.RecordChat(false, assert.AnError)
	m.RecordRetrieval(100*time.Millisecond, nil)
	m.RecordRetrieval(0, assert.AnError)

	stats := m.Stats()
	chat := stats["chat"].(map[string]any)
	assert.EqualValues(t, 3, chat["total"])
	assert.EqualValues(t, 1, chat["streams"])
	assert.EqualValues(t, 1, chat["errors"])

	retrieval := stats["retrieval"].(map[string]any)
	assert.EqualValues(t, 2, retrieval["total"])
	assert.EqualValues(t, 1, retrieval["errors"])
	assert.InDelta(t, 0.1, retrieval["avg_duration_secs"], 0.001)
}

func TestRecordVerification(t *testing.T) {
	m := New()
	m.RecordVerification("match")
	m.RecordVerification("match")
	m.RecordVerification("no_match")
	m.RecordVerification("")

	outcomes := m.Stats()["verifications"].(map[string]uint64)
	assert.Equal(t, map[string]uint64{"match": 2, "no_match": 1}, outcomes)
}

func TestPolicyObserver(t *testing.T) {
	m := New()
	p := resilience.NewPolicy(&resilience.RetryConfig{
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     time.Millisecond,
		Multiplier:   1,
	}, &resilience.CircuitBreakerConfig{MaxFailures: 2, Timeout: time.Minute})
	p.SetObserver(m)

	unavailable := &httpclient.StatusError{StatusCode: http.StatusServiceUnavailable}
	err := p.Do(context.Background(), "chat", func(context.Context) error { return unavailable })
	require.Error(t, err)
	require.NoError(t, p.Do(context.Background(), "embedding", func(context.Context) error { return nil }))

	stats := m.Stats()
	ups := stats["upstreams"].(map[string]any)
	chat := ups["chat"].(map[string]any)
	assert.EqualValues(t, 2, chat["calls"])
	assert.EqualValues(t, 2, chat["errors"])
	assert.Equal(t, "open", chat["breaker_state"])
	assert.EqualValues(t, 1, chat["breaker_opens"])

	embedding := ups["embedding"].(map[string]any)
	assert.EqualValues(t, 1, embedding["calls"])
	assert.EqualValues(t, 0, embedding["errors"])
	assert.Equal(t, "closed", embedding["breaker_state"])

	assert.EqualValues(t, 1, stats["circuit_breaker"].(map[string]any)["opens"])
}

func TestExport(t *testing.T) {
	m := New()
	m.RecordChat(false, nil)
	m.RecordVerification("match")
	m.ObserveCall("faceplusplus", 20*time.Millisecond, errors.New("boom"))
	m.ObserveBreaker("faceplusplus", resilience.StateClosed, resilience.StateOpen)

	out := m.Export("mhire")
	for _, want := range []string{
		"# TYPE mhire_chat_requests_total counter",
		"mhire_chat_requests_total 1",
		`mhire_upstream_errors_total{upstream="faceplusplus"} 1`,
		`mhire_circuit_breaker_state{upstream="faceplusplus"} 1`,
		`mhire_verifications_total{outcome="match"} 1`,
		"mhire_circuit_breaker_opens_total 1",
		"# TYPE mhire_uptime_seconds gauge",
	} {
		assert.True(t, strings.Contains(out, want), "missing %q", want)
	}
}

func TestReset(t *testing.T) {
	m := New()
	m.RecordChat(false, nil)
	m.RecordVerification("match")
	m.ObserveCall("chat", time.Millisecond, nil)
	m.Reset()

	stats := m.Stats()
	assert.EqualValues(t, 0, stats["chat"].(map[string]any)["total"])
	assert.Empty(t, stats["verifications"])
	assert.Empty(t, stats["upstreams"])
}
