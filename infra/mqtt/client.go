package mqtt

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/medbot/rounds/core/fanout"
	"github.com/medbot/rounds/infra/logger"
)

// Config defines the connection parameters of the fan-out backbone.
type Config struct {
	Broker      string      `json:"broker"`
	ClientID    string      `json:"client_id"`
	Username    string      `json:"username"`
	Password    string      `json:"password"`
	TopicPrefix string      `json:"topic_prefix"`
	QoS         byte        `json:"qos"`
	UseTLS      bool        `json:"use_tls"`
	ClientCert  string      `json:"client_cert"`
	ClientKey   string      `json:"client_key"`
	CABundle    string      `json:"ca_bundle"`
	AuthMethod  string      `json:"auth_method"`
	LWTTopic    string      `json:"lwt_topic"`
	LWTPayload  string      `json:"lwt_payload"`
	LWTQoS      byte        `json:"lwt_qos"`
	LWTRetain   bool        `json:"lwt_retain"`
	MaxRetries  int         `json:"max_retries"`
	BackoffMS   int         `json:"backoff_ms"`
	TLSConfig   *tls.Config `json:"-"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.TopicPrefix == "" {
		c.TopicPrefix = "rounds/fanout"
	}
	if c.ClientID == "" {
		c.ClientID = "rounds-" + uuid.NewString()
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
}

// Validate checks the configuration. An empty broker disables the backbone.
func (c Config) Validate() error {
	if c.Broker == "" {
		return nil
	}
	if c.QoS > 2 || c.LWTQoS > 2 {
		return fmt.Errorf("qos must be 0, 1 or 2")
	}
	if strings.ContainsAny(c.TopicPrefix, "+#") {
		return fmt.Errorf("topic_prefix must not contain wildcards")
	}
	switch c.AuthMethod {
	case "", "username_password", "certificate", "both":
	default:
		return fmt.Errorf("mqtt: unknown auth_method %q", c.AuthMethod)
	}
	return nil
}

// Enabled reports whether a broker is configured.
func (c Config) Enabled() bool { return c.Broker != "" }

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

// Backbone relays fan-out frames through an MQTT broker so every process
// sharing the broker delivers them to its own members. Frames travel on
// <prefix>/<group>.
type Backbone struct {
	cli        pahoClient
	prefix     string
	qos        byte
	logger     logger.Logger
	maxRetries int
	backoff    time.Duration

	mu      sync.Mutex
	deliver func(group string, frame []byte)
}

var _ fanout.Backbone = (*Backbone)(nil)

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// NewBackbone connects to the broker. Subscriptions are restored on every
// reconnect.
func NewBackbone(cfg Config) (*Backbone, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	logger := logger.New("mqtt_backbone")
	b := &Backbone{
		prefix:     strings.TrimSuffix(cfg.TopicPrefix, "/"),
		qos:        cfg.QoS,
		logger:     logger,
		maxRetries: cfg.MaxRetries,
		backoff:    time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		logger.Infof("MQTT connected")
		b.resubscribe(c)
	}
	opts.OnConnectionLost = func(_ paho.Client, err error) {
		logger.Errorf("connection lost: %v", err)
	}
	opts.OnReconnecting = func(_ paho.Client, _ *paho.ClientOptions) {
		logger.Warnf("reconnecting to MQTT broker")
	}
	c := newMQTTClient(opts)
	b.cli = c
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return b, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	opts.CleanSession = true
	if cfg.AuthMethod == "username_password" || cfg.AuthMethod == "both" || cfg.AuthMethod == "" {
		if cfg.Username != "" {
			opts.SetUsername(cfg.Username)
		}
		if cfg.Password != "" {
			opts.SetPassword(cfg.Password)
		}
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	if cfg.LWTTopic != "" {
		opts.SetWill(cfg.LWTTopic, cfg.LWTPayload, cfg.LWTQoS, cfg.LWTRetain)
	}
	return opts, nil
}

// LoadTLSConfig loads the TLS configuration from the file paths in the config.
func (c Config) LoadTLSConfig() (*tls.Config, error) {
	if c.TLSConfig != nil {
		return c.TLSConfig, nil
	}
	if c.ClientCert == "" || c.ClientKey == "" || c.CABundle == "" {
		return nil, fmt.Errorf("tls config requires client_cert, client_key and ca_bundle")
	}
	cert, err := tls.LoadX509KeyPair(c.ClientCert, c.ClientKey)
	if err != nil {
		return nil, fmt.Errorf("load cert: %w", err)
	}
	caBytes, err := os.ReadFile(c.CABundle)
	if err != nil {
		return nil, fmt.Errorf("read ca: %w", err)
	}
	pool := x509.NewCertPool()
	pool.AppendCertsFromPEM(caBytes)
	return &tls.Config{Certificates: []tls.Certificate{cert}, RootCAs: pool, MinVersion: tls.VersionTLS12}, nil
}

// Topic returns the topic carrying frames of group.
func (b *Backbone) Topic(group string) string { return b.prefix + "/" + group }

// Subscribe registers deliver for frames of every group. Only one callback
// is kept; a second call replaces the first.
func (b *Backbone) Subscribe(_ context.Context, deliver func(group string, frame []byte)) error {
	b.mu.Lock()
	b.deliver = deliver
	b.mu.Unlock()
	if !b.cli.IsConnected() {
		return nil
	}
	token := b.cli.Subscribe(b.prefix+"/+", b.qos, b.onFrame)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("subscribe %s/+: %w", b.prefix, token.Error())
	}
	return nil
}

func (b *Backbone) resubscribe(c paho.Client) {
	b.mu.Lock()
	active := b.deliver != nil
	b.mu.Unlock()
	if !active {
		return
	}
	if token := c.Subscribe(b.prefix+"/+", b.qos, b.onFrame); token.Wait() && token.Error() != nil {
		b.logger.Errorf("subscribe error: %v", token.Error())
	}
}

func (b *Backbone) onFrame(_ paho.Client, msg paho.Message) {
	group, ok := strings.CutPrefix(msg.Topic(), b.prefix+"/")
	if !ok {
		return
	}
	if _, known := fanout.Lookup(group); !known {
		b.logger.Warnf("dropping frame on unknown group %q", group)
		return
	}
	b.mu.Lock()
	deliver := b.deliver
	b.mu.Unlock()
	if deliver != nil {
		deliver(group, msg.Payload())
	}
}

// Close gracefully closes the MQTT connection.
func (b *Backbone) Close() error {
	if b.cli != nil && b.cli.IsConnected() {
		b.cli.Disconnect(250)
	}
	return nil
}
