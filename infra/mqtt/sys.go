package mqtt

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/brokerflux/infra/logger"
)

// DefaultSysTopic covers every broker statistics topic.
const DefaultSysTopic = "$SYS/#"

// SysBridge mirrors numeric broker statistics published under $SYS into
// Prometheus gauges, one gauge per topic.
type SysBridge struct {
	cli   pahoClient
	reg   prometheus.Registerer
	topic string
	qos   byte
	log   logger.Logger

	mu       sync.Mutex
	gauges   map[string]prometheus.Gauge
	received prometheus.Counter
	ignored  prometheus.Counter
}

// NewSysBridge connects to the broker and subscribes to cfg.SysTopic. The
// subscription is renewed on every reconnect.
func NewSysBridge(cfg Config, reg prometheus.Registerer) (*SysBridge, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}
	topic := cfg.SysTopic
	if topic == "" {
		topic = DefaultSysTopic
	}
	log := logger.New("sys_bridge")
	b := &SysBridge{
		reg:    reg,
		topic:  topic,
		qos:    cfg.QoS,
		log:    log,
		gauges: make(map[string]prometheus.Gauge),
	}
	b.received, err = registerCounter(reg, prometheus.CounterOpts{
		Name: "brokerflux_sys_messages_total",
		Help: "Number of $SYS messages mirrored into gauges",
	})
	if err != nil {
		return nil, err
	}
	b.ignored, err = registerCounter(reg, prometheus.CounterOpts{
		Name: "brokerflux_sys_messages_ignored_total",
		Help: "Number of $SYS messages without a numeric payload",
	})
	if err != nil {
		return nil, err
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected, subscribing to %s", b.topic)
		if token := c.Subscribe(b.topic, b.qos, b.onMessage); token.Wait() && token.Error() != nil {
			log.Errorf("subscribe error: %v", token.Error())
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
	b.cli = c
	return b, nil
}

func (b *SysBridge) onMessage(_ paho.Client, msg paho.Message) {
	v, ok := ParseSysValue(msg.Payload())
	if !ok {
		b.ignored.Inc()
		return
	}
	g, err := b.gauge(msg.Topic())
	if err != nil {
		b.log.Errorf("gauge for %s: %v", msg.Topic(), err)
		return
	}
	g.Set(v)
	b.received.Inc()
}

func (b *SysBridge) gauge(topic string) (prometheus.Gauge, error) {
	name := MetricName(topic)
	b.mu.Lock()
	defer b.mu.Unlock()
	if g, ok := b.gauges[name]; ok {
		return g, nil
	}
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: name, Help: "Last value published on " + topic})
	if err := b.reg.Register(g); err != nil {
		var are prometheus.AlreadyRegisteredError
		if !errors.As(err, &are) {
			return nil, err
		}
		existing, ok := are.ExistingCollector.(prometheus.Gauge)
		if !ok {
			return nil, err
		}
		g = existing
	}
	b.gauges[name] = g
	return g, nil
}

// Gauges is the number of topics mirrored so far.
func (b *SysBridge) Gauges() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.gauges)
}

// Close disconnects from the broker.
func (b *SysBridge) Close() {
	if b.cli != nil && b.cli.IsConnected() {
		b.cli.Disconnect(250)
	}
}

// ParseSysValue extracts the number at the start of a $SYS payload such as
// "42", "0.75" or "3600 seconds".
func ParseSysValue(payload []byte) (float64, bool) {
	fields := strings.Fields(string(payload))
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// MetricName turns a topic into a Prometheus metric name:
// "$SYS/broker/clients/connected" becomes "sys_broker_clients_connected".
func MetricName(topic string) string {
	var sb strings.Builder
	sb.Grow(len(topic))
	lastUnderscore := true
	for _, r := range strings.ToLower(strings.TrimPrefix(topic, "$")) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore {
				sb.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	name := strings.TrimSuffix(sb.String(), "_")
	if !strings.HasPrefix(name, "sys_") && name != "sys" {
		name = "sys_" + name
	}
	return name
}

func registerCounter(reg prometheus.Registerer, opts prometheus.CounterOpts) (prometheus.Counter, error) {
	c := prometheus.NewCounter(opts)
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(prometheus.Counter); ok {
				return existing, nil
			}
		}
		return nil, err
	}
	return c, nil
}
