package mqtt

import (
	"fmt"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"
)

// Options configures a RealPublisher.
type Options struct {
	Broker   string
	ClientID string
	Topics   Topics
	Buffer   int
}

// RealPublisher publishes to a broker without waiting for acknowledgements.
// Messages produced while disconnected are kept in a ring buffer and
// replayed when the connection comes back.
type RealPublisher struct {
	client paho.Client
	topics Topics
	log    zerolog.Logger

	mu  sync.Mutex
	buf *ringBuffer
}

// NewRealPublisher starts connecting in the background and returns at once;
// the client keeps retrying until the broker is reachable.
func NewRealPublisher(o Options, log zerolog.Logger) *RealPublisher {
	p := &RealPublisher{
		topics: o.Topics,
		log:    log.With().Str("component", "mqtt").Logger(),
		buf:    newRingBuffer(o.Buffer),
	}
	opts := paho.NewClientOptions().
		AddBroker(o.Broker).
		SetClientID(o.ClientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWriteTimeout(time.Second).
		SetWill(o.Topics.System, string(WillPayload()), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			p.log.Warn().Err(err).Msg("connection lost")
		})
	p.client = paho.NewClient(opts)
	p.client.Connect()
	return p
}

func (p *RealPublisher) onConnect(c paho.Client) {
	p.mu.Lock()
	pending := p.buf.drainAll()
	p.mu.Unlock()
	p.log.Info().Int("replayed", len(pending)).Msg("connected")
	for _, m := range pending {
		c.Publish(m.topic, m.qos, m.retained, m.payload)
	}
}

func (p *RealPublisher) send(topic string, qos byte, retained bool, payload []byte) error {
	if !p.client.IsConnectionOpen() {
		p.mu.Lock()
		dropped := p.buf.push(bufferedMsg{topic: topic, payload: payload, qos: qos, retained: retained})
		p.mu.Unlock()
		if dropped {
			p.log.Debug().Msg("offline buffer full, dropped oldest")
		}
		return nil
	}
	tok := p.client.Publish(topic, qos, retained, payload)
	select {
	case <-tok.Done():
		return tok.Error()
	default:
		return nil
	}
}

func (p *RealPublisher) PublishButton(event ButtonEvent) error {
	payload, err := FormatButtonPayload(event)
	if err != nil {
		return fmt.Errorf("format button payload: %w", err)
	}
	return p.send(p.topics.Events, 0, false, payload)
}

func (p *RealPublisher) PublishTask(event TaskEvent) error {
	payload, err := FormatTaskPayload(event)
	if err != nil {
		return fmt.Errorf("format task payload: %w", err)
	}
	return p.send(p.topics.Events, 0, false, payload)
}

func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.send(p.topics.System, 1, event.Retained, payload)
}

// IsConnected reports whether the broker connection is up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Buffered returns the number of messages waiting for a connection.
func (p *RealPublisher) Buffered() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.buf.len()
}

// Close disconnects, giving in-flight messages up to a second.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000)
	return nil
}
