// Package mqtt exposes a gatt.Table over an MQTT broker. The broker link
// stands in for the peer: characteristic values are published per UUID and
// client configuration and value writes arrive on command topics.
//
// Topic layout under <prefix>/<device>:
//
//	status            retained "online" / "offline" (last will)
//	adv               retained advertisement document
//	<uuid>/value      notifications and read responses
//	<uuid>/ccc        client configuration writes (2 bytes, little-endian)
//	<uuid>/write      peer value writes
//	<uuid>/read       read requests, answered on <uuid>/value
//	<uuid>/error      ATT errors caused by the last command
package mqtt

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/srg/telebridge/internal/bledb"
	"github.com/srg/telebridge/internal/gatt"
)

const (
	DefaultTopicPrefix    = "telebridge"
	DefaultPublishTimeout = 5 * time.Second

	statusOnline  = "online"
	statusOffline = "offline"
)

var (
	ErrAlreadyStarted = errors.New("transport already started")
	ErrNotConnected   = errors.New("mqtt client not connected")
)

// Client is the part of paho's mqtt.Client the transport drives.
type Client interface {
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
	IsConnected() bool
}

// ClientFactory creates the broker client (can be overridden in tests).
//
//nolint:revive // ClientFactory name is intentional for test mocking
var ClientFactory = func(opts *paho.ClientOptions) Client {
	return paho.NewClient(opts)
}

// Options configures the broker link.
type Options struct {
	Broker      string
	ClientID    string
	TopicPrefix string
	DeviceName  string
	QoS         byte
}

// AdvertisementDocument is the retained discovery record.
type AdvertisementDocument struct {
	Name         string   `json:"name"`
	Services     []string `json:"services"`
	AdvData      string   `json:"adv_data"`
	ScanResponse string   `json:"scan_response,omitempty"`
}

// Transport is a gatt.Transport backed by an MQTT broker.
type Transport struct {
	opts   Options
	logger *logrus.Logger

	mu      sync.RWMutex
	client  Client
	table   *gatt.Table
	events  gatt.EventHandler
	adv     gatt.Advertisement
	base    string
	online  bool
	started bool
}

var _ gatt.Transport = (*Transport)(nil)

// New creates an idle transport.
func New(opts Options, logger *logrus.Logger) *Transport {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.TopicPrefix == "" {
		opts.TopicPrefix = DefaultTopicPrefix
	}
	return &Transport{opts: opts, logger: logger}
}

// Start connects to the broker and waits for the first connection, honouring
// ctx. Subscriptions are (re)established on every connect.
func (t *Transport) Start(ctx context.Context, table *gatt.Table, adv gatt.Advertisement, events gatt.EventHandler) error {
	t.mu.Lock()
	if t.started {
		t.mu.Unlock()
		return ErrAlreadyStarted
	}
	device := t.opts.DeviceName
	if device == "" {
		device = adv.LocalName
	}
	t.table, t.events, t.adv = table, events, adv
	t.base = t.opts.TopicPrefix + "/" + device

	opts := paho.NewClientOptions()
	opts.AddBroker(t.opts.Broker)
	opts.SetClientID(t.opts.ClientID)
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetWill(t.topic("status"), statusOffline, 1, true)
	opts.SetOnConnectHandler(func(_ paho.Client) { t.onConnect() })
	opts.SetConnectionLostHandler(func(_ paho.Client, err error) { t.onConnectionLost(err) })

	t.client = ClientFactory(opts)
	t.started = true
	client := t.client
	t.mu.Unlock()

	token := client.Connect()
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
			client.Disconnect(0)
			return ctx.Err()
		default:
		}
	}
}

func (t *Transport) topic(parts ...string) string {
	return t.base + "/" + strings.Join(parts, "/")
}

func (t *Transport) onConnect() {
	t.mu.Lock()
	t.online = true
	client := t.client
	t.mu.Unlock()

	for _, action := range []string{"ccc", "write", "read"} {
		topic := t.topic("+", action)
		tok := client.Subscribe(topic, t.opts.QoS, func(_ paho.Client, m paho.Message) {
			t.handleMessage(m.Topic(), m.Payload())
		})
		if err := t.wait(tok); err != nil {
			t.logger.WithError(err).WithField("topic", topic).Error("Subscribe failed")
		}
	}

	if err := t.publish(t.topic("status"), true, []byte(statusOnline)); err != nil {
		t.logger.WithError(err).Warn("Failed to publish status")
	}
	if doc, err := t.advertisement(); err != nil {
		t.logger.WithError(err).Warn("Advertisement not published")
	} else if err := t.publish(t.topic("adv"), true, doc); err != nil {
		t.logger.WithError(err).Warn("Failed to publish advertisement")
	}

	t.logger.WithFields(logrus.Fields{"broker": t.opts.Broker, "topic": t.base}).Info("MQTT connected")
	t.events.OnConnected(t.opts.Broker)
}

func (t *Transport) onConnectionLost(err error) {
	t.mu.Lock()
	t.online = false
	t.mu.Unlock()

	t.logger.WithError(err).WithField("broker", t.opts.Broker).Warn("MQTT connection lost")
	t.events.OnDisconnected(t.opts.Broker)
}

func (t *Transport) advertisement() ([]byte, error) {
	doc := AdvertisementDocument{
		Name:     t.adv.LocalName,
		Services: append([]string{}, t.adv.ServiceUUIDs...),
		AdvData:  hex.EncodeToString(t.adv.AdvertisingData()),
	}
	sr, err := t.adv.ScanResponse()
	if err != nil {
		return nil, err
	}
	doc.ScanResponse = hex.EncodeToString(sr)
	return json.Marshal(doc)
}

// handleMessage routes a command published under <base>/<uuid>/<action>.
func (t *Transport) handleMessage(topic string, payload []byte) {
	rest, ok := strings.CutPrefix(topic, t.base+"/")
	if !ok {
		return
	}
	uuid, action, ok := strings.Cut(rest, "/")
	if !ok {
		return
	}
	uuid = bledb.NormalizeUUID(uuid)

	log := t.logger.WithFields(logrus.Fields{"uuid": uuid, "action": action})
	h, found := t.table.Lookup(uuid)
	if !found {
		log.Warn("Command for unknown characteristic")
		t.reportError(uuid, &gatt.AttributeError{Code: gatt.ATTInvalidHandle, Handle: gatt.InvalidHandle, Msg: uuid})
		return
	}

	var err error
	switch action {
	case "ccc":
		err = t.events.OnDescriptorWrite(h, payload)
	case "write":
		err = t.events.OnWrite(h, payload)
	case "read":
		var data []byte
		if data, err = t.table.Read(h); err == nil {
			err = t.publish(t.topic(uuid, "value"), false, data)
		}
	default:
		log.Debug("Ignoring unknown action")
		return
	}
	if err != nil {
		t.reportError(uuid, err)
	}
}

func (t *Transport) reportError(uuid string, err error) {
	code := gatt.CodeOf(err)
	msg := fmt.Sprintf("0x%02x %s", uint8(code), code)
	if perr := t.publish(t.topic(uuid, "error"), false, []byte(msg)); perr != nil {
		t.logger.WithError(perr).Debug("Failed to publish error")
	}
}

func (t *Transport) wait(tok paho.Token) error {
	if !tok.WaitTimeout(DefaultPublishTimeout) {
		return errors.New("mqtt operation timed out")
	}
	return tok.Error()
}

func (t *Transport) publish(topic string, retained bool, payload []byte) error {
	t.mu.RLock()
	client, online := t.client, t.online
	t.mu.RUnlock()
	if client == nil || !online {
		return ErrNotConnected
	}
	if err := t.wait(client.Publish(topic, t.opts.QoS, retained, payload)); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	return nil
}

// Notify publishes data on the value topic of h.
func (t *Transport) Notify(h gatt.Handle, data []byte) error {
	cfg, ok := t.table.Config(h)
	if !ok {
		return gatt.ErrInvalidHandle
	}
	return t.publish(t.topic(cfg.UUID, "value"), false, data)
}

// Close marks the device offline and disconnects.
func (t *Transport) Close() error {
	t.mu.Lock()
	if !t.started {
		t.mu.Unlock()
		return nil
	}
	client := t.client
	t.mu.Unlock()

	if err := t.publish(t.topic("status"), true, []byte(statusOffline)); err != nil && !errors.Is(err, ErrNotConnected) {
		t.logger.WithError(err).Warn("Failed to publish status")
	}

	t.mu.Lock()
	t.started = false
	t.online = false
	t.mu.Unlock()

	client.Disconnect(250)
	t.logger.Info("MQTT disconnected")
	return nil
}
