package mqtt

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/smukkama/pm25-intent/internal/location"
	"github.com/smukkama/pm25-intent/internal/protocol"
	"github.com/smukkama/pm25-intent/pkg/config"
)

// FixSaver is satisfied by *fixstore.Store
type FixSaver interface {
	SaveFix(ctx context.Context, deviceID string, fix location.Fix) (bool, error)
}

// Subscriber ingests fixes that devices publish to devices/<id>/location
type Subscriber struct {
	client    mqtt.Client
	cfg       config.MQTTConfig
	fixes     FixSaver
	logger    *slog.Logger
	mu        sync.RWMutex
	connected bool

	stopCh   chan struct{}
	stopOnce sync.Once
}

func NewSubscriber(cfg config.MQTTConfig, fixes FixSaver, logger *slog.Logger) *Subscriber {
	s := &Subscriber{
		cfg:    cfg,
		fixes:  fixes,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)

	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)

	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)

	opts.SetOnConnectHandler(func(c mqtt.Client) {
		s.setConnected(true)
		logger.Info("mqtt connected", "broker", cfg.Broker)
		// Subscriptions do not survive a clean-session reconnect
		if err := s.subscribe(c); err != nil {
			logger.Error("mqtt subscribe failed", "error", err)
		}
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		s.setConnected(false)
		logger.Warn("mqtt connection lost", "error", err)
	})

	s.client = mqtt.NewClient(opts)
	return s
}

// Connect establishes the connection; the subscription is made by the
// on-connect handler
func (s *Subscriber) Connect(ctx context.Context) error {
	select {
	case <-s.stopCh:
		return fmt.Errorf("subscriber stopped")
	default:
	}

	if s.IsConnected() {
		return nil
	}

	token := s.client.Connect()

	const poll = 200 * time.Millisecond
	for {
		if token.WaitTimeout(poll) {
			if err := token.Error(); err != nil {
				return fmt.Errorf("mqtt connect: %w", err)
			}
			return nil
		}

		select {
		case <-ctx.Done():
			s.client.Disconnect(0)
			return ctx.Err()
		case <-s.stopCh:
			s.client.Disconnect(0)
			return fmt.Errorf("subscriber stopped")
		default:
		}
	}
}

func (s *Subscriber) subscribe(c mqtt.Client) error {
	qos := byte(1) // At least once delivery

	token := c.Subscribe(s.cfg.Topic, qos, func(_ mqtt.Client, msg mqtt.Message) {
		s.handleMessage(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("subscribe timeout for topic %s", s.cfg.Topic)
	}
	if token.Error() != nil {
		return fmt.Errorf("subscribe to %s: %w", s.cfg.Topic, token.Error())
	}

	s.logger.Info("subscribed to mqtt topic", "topic", s.cfg.Topic, "qos", qos)
	return nil
}

// deviceFromTopic extracts <id> from devices/<id>/location
func deviceFromTopic(topic string) (string, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 3 || parts[0] != "devices" || parts[2] != "location" || parts[1] == "" {
		return "", fmt.Errorf("unexpected topic %q", topic)
	}
	return parts[1], nil
}

func (s *Subscriber) handleMessage(topic string, payload []byte) {
	s.logger.Debug("received mqtt message", "topic", topic, "size", len(payload))

	deviceID, err := deviceFromTopic(topic)
	if err != nil {
		s.logger.Warn("ignoring mqtt message", "error", err)
		return
	}

	var msg protocol.LocationMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		s.logger.Warn("failed to parse location message",
			"topic", topic,
			"error", err,
		)
		return
	}

	if err := protocol.ValidateLocation(&msg); err != nil {
		s.logger.Warn("invalid location message",
			"device_id", deviceID,
			"error", err,
		)
		return
	}

	fix, err := msg.Fix()
	if err != nil {
		s.logger.Warn("invalid location timestamp", "device_id", deviceID, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	written, err := s.fixes.SaveFix(ctx, deviceID, fix)
	if err != nil {
		s.logger.Error("failed to store fix",
			"device_id", deviceID,
			"error", err,
		)
		return
	}
	s.logger.Debug("processed location message", "device_id", deviceID, "stored", written)
}

// IsConnected returns whether the client is connected.
func (s *Subscriber) IsConnected() bool {
	s.mu.RLock()
	connected := s.connected
	s.mu.RUnlock()
	return connected && s.client.IsConnected()
}

// Disconnect stops the subscriber and closes the MQTT connection.
// Idempotent and safe to call multiple times.
func (s *Subscriber) Disconnect() {
	s.stopOnce.Do(func() { close(s.stopCh) })

	if s.client != nil && s.IsConnected() {
		token := s.client.Unsubscribe(s.cfg.Topic)
		token.WaitTimeout(2 * time.Second)
	}

	if s.client != nil {
		s.client.Disconnect(250)
	}

	s.setConnected(false)
	s.logger.Info("mqtt subscriber disconnected")
}

func (s *Subscriber) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}
