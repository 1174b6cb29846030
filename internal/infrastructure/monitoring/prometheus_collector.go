package monitoring

import (
	"parley/internal/core/domain"
	"parley/internal/core/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.MetricsRecorder on a caller-supplied
// registerer, so tests can hand in a fresh registry.
type PrometheusCollector struct {
	sessionsConnected prometheus.Gauge
	roomsActive       prometheus.Gauge

	roomMembers *prometheus.GaugeVec

	joinsTotal        *prometheus.CounterVec
	leavesTotal       *prometheus.CounterVec
	chatMessagesTotal *prometheus.CounterVec
	signalsTotal      *prometheus.CounterVec
	clientErrorsTotal *prometheus.CounterVec
}

var _ ports.MetricsRecorder = (*PrometheusCollector)(nil)

func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		sessionsConnected: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parley_sessions_connected",
			Help: "Number of live websocket sessions",
		}),

		roomsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "parley_rooms_active",
			Help: "Number of rooms with at least one live member",
		}),

		roomMembers: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "parley_room_members",
			Help: "Number of live members per room",
		}, []string{"room_id"}),

		joinsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_joins_total",
			Help: "Total successful room joins",
		}, []string{"room_id"}),

		leavesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_leaves_total",
			Help: "Total room leaves, explicit and disconnect-driven",
		}, []string{"room_id"}),

		chatMessagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_chat_messages_total",
			Help: "Total chat messages relayed",
		}, []string{"room_id"}),

		signalsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_signals_total",
			Help: "Total signaling payloads relayed, by event kind",
		}, []string{"kind"}),

		clientErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "parley_client_errors_total",
			Help: "Total rejected client events, by error code",
		}, []string{"code"}),
	}
}

func (p *PrometheusCollector) RecordSessionConnected() {
	p.sessionsConnected.Inc()
}

func (p *PrometheusCollector) RecordSessionDisconnected() {
	p.sessionsConnected.Dec()
}

func (p *PrometheusCollector) RecordJoin(roomID domain.MeetingID) {
	p.joinsTotal.WithLabelValues(string(roomID)).Inc()
	p.roomMembers.WithLabelValues(string(roomID)).Inc()
}

func (p *PrometheusCollector) RecordLeave(roomID domain.MeetingID) {
	p.leavesTotal.WithLabelValues(string(roomID)).Inc()
	p.roomMembers.WithLabelValues(string(roomID)).Dec()
}

func (p *PrometheusCollector) RecordRoomOpened() {
	p.roomsActive.Inc()
}

func (p *PrometheusCollector) RecordRoomClosed(roomID domain.MeetingID) {
	p.roomsActive.Dec()
	p.roomMembers.DeleteLabelValues(string(roomID))
}

func (p *PrometheusCollector) RecordChatMessage(roomID domain.MeetingID) {
	p.chatMessagesTotal.WithLabelValues(string(roomID)).Inc()
}

func (p *PrometheusCollector) RecordSignal(kind domain.EventKind) {
	p.signalsTotal.WithLabelValues(string(kind)).Inc()
}

func (p *PrometheusCollector) RecordClientError(code string) {
	p.clientErrorsTotal.WithLabelValues(code).Inc()
}
