package mqtt

import (
	"context"
	"encoding/json"
	"errors"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/usermihir/Agentic-EV/core/model"
	"github.com/usermihir/Agentic-EV/infra/logger"
)

// SessionSink folds session telemetry into the rolling duration stats.
type SessionSink interface {
	RecordSession(connectorID string, durationMin float64)
	SetQueueDepth(connectorID string, depth int)
}

// SessionStarter fulfils reservations when a charging session begins;
// implemented by the reservation manager.
type SessionStarter interface {
	StartSession(ctx context.Context, connectorID string, actualStartMin float64) (model.Reservation, error)
}

// SignalWriter updates a connector's rolling reliability signals.
type SignalWriter interface {
	UpdateSignals(id string, success, softFault, mttrHours float64) error
}

// sessionMessage is the wire format published by station firmware on
// session start and end.
type sessionMessage struct {
	StationID      string  `json:"station_id"`
	ConnectorID    string  `json:"connector_id"`
	Event          string  `json:"event"` // "started" or "ended"
	ActualStartMin float64 `json:"actual_start_min"`
	DurationMin    float64 `json:"duration_min"`
}

// statusMessage carries queue depth and optionally refreshed
// reliability signals.
type statusMessage struct {
	ConnectorID      string   `json:"connector_id"`
	QueueDepth       int      `json:"queue_depth"`
	StartSuccessRate *float64 `json:"start_success_rate,omitempty"`
	SoftFaultRate    *float64 `json:"soft_fault_rate,omitempty"`
	MTTRHours        *float64 `json:"mttr_h,omitempty"`
}

// Ingestor subscribes to station telemetry topics and routes messages
// to the guardian core. Sessions and starter may be nil; the matching
// messages are then dropped.
type Ingestor struct {
	cli     pahoClient
	cfg     Config
	stats   SessionSink
	starter SessionStarter
	signals SignalWriter
	log     logger.Logger
}

// NewIngestor connects to the broker and subscribes to the session and
// status topics.
func NewIngestor(cfg Config, stats SessionSink, starter SessionStarter, signals SignalWriter) (*Ingestor, error) {
	cfg.SetDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt_ingest")
	in := &Ingestor{cfg: cfg, stats: stats, starter: starter, signals: signals, log: log}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.SessionTopic, in.qos("session"), in.onSession); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", cfg.SessionTopic, token.Error())
		}
		if token := c.Subscribe(cfg.StatusTopic, in.qos("status"), in.onStatus); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe %s: %v", cfg.StatusTopic, token.Error())
		}
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		log.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		log.Warnf("reconnecting to MQTT broker")
	}

	c := newMQTTClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	in.cli = c
	return in, nil
}

func (in *Ingestor) qos(kind string) byte {
	if q, ok := in.cfg.QoS[kind]; ok {
		return q
	}
	return 0
}

func (in *Ingestor) onSession(_ paho.Client, msg paho.Message) {
	var m sessionMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		in.log.Errorf("decode session message: %v", err)
		return
	}
	if m.ConnectorID == "" {
		in.log.Warnf("session message without connector_id on %s", msg.Topic())
		return
	}
	switch m.Event {
	case "started":
		if in.starter == nil {
			return
		}
		if _, err := in.starter.StartSession(context.Background(), m.ConnectorID, m.ActualStartMin); err != nil {
			// Walk-up sessions have no reservation to fulfil.
			if errors.Is(err, model.ErrNotFound) {
				in.log.Debugf("session on %s without reservation", m.ConnectorID)
				return
			}
			in.log.Errorf("start session on %s: %v", m.ConnectorID, err)
		}
	case "ended":
		if in.stats != nil {
			in.stats.RecordSession(m.ConnectorID, m.DurationMin)
		}
	default:
		in.log.Warnf("unknown session event %q on %s", m.Event, msg.Topic())
	}
}

func (in *Ingestor) onStatus(_ paho.Client, msg paho.Message) {
	var m statusMessage
	if err := json.Unmarshal(msg.Payload(), &m); err != nil {
		in.log.Errorf("decode status message: %v", err)
		return
	}
	if m.ConnectorID == "" {
		in.log.Warnf("status message without connector_id on %s", msg.Topic())
		return
	}
	if in.stats != nil {
		in.stats.SetQueueDepth(m.ConnectorID, m.QueueDepth)
	}
	if in.signals != nil && m.StartSuccessRate != nil && m.SoftFaultRate != nil && m.MTTRHours != nil {
		if err := in.signals.UpdateSignals(m.ConnectorID, *m.StartSuccessRate, *m.SoftFaultRate, *m.MTTRHours); err != nil {
			in.log.Errorf("update signals for %s: %v", m.ConnectorID, err)
		}
	}
}

// Disconnect gracefully closes the MQTT connection.
func (in *Ingestor) Disconnect() {
	if in.cli != nil && in.cli.IsConnected() {
		in.cli.Disconnect(250)
	}
}
