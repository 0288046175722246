package mqtt

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"errors"
	"fmt"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/medbot/rounds/core/fanout"
	"github.com/medbot/rounds/core/monitoring"
)

// helper to generate self-signed cert
func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{SerialNumber: big.NewInt(1), Subject: pkix.Name{CommonName: "test"}, NotBefore: time.Now(), NotAfter: time.Now().Add(time.Hour)}
	der, err := x509.CreateCertificate(rand.Reader, &tmpl, &tmpl, &priv.PublicKey, priv)
	if err != nil {
		t.Fatalf("create cert: %v", err)
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(priv)})

	dir := t.TempDir()
	certFile = dir + "/cert.pem"
	keyFile = dir + "/key.pem"
	caFile = dir + "/ca.pem"
	if err := os.WriteFile(certFile, certPEM, 0644); err != nil {
		t.Fatalf("write cert: %v", err)
	}
	if err := os.WriteFile(keyFile, keyPEM, 0644); err != nil {
		t.Fatalf("write key: %v", err)
	}
	if err := os.WriteFile(caFile, certPEM, 0644); err != nil {
		t.Fatalf("write ca: %v", err)
	}
	return
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 {
		t.Fatalf("no certs loaded")
	}
	if tlsCfg.RootCAs == nil {
		t.Fatalf("no root CAs")
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatalf("auth not set")
	}
}

func installMock(t *testing.T, mc *mockClient) {
	t.Helper()
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() { newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) } })
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()
	if cfg.TopicPrefix != "rounds/fanout" || cfg.MaxRetries != 3 || cfg.BackoffMS != 100 {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.ClientID == "" {
		t.Fatalf("client id not generated")
	}
	if cfg.Enabled() {
		t.Fatalf("backbone enabled without broker")
	}
	cfg.Broker = "tcp://localhost:1883"
	cfg.TopicPrefix = "rounds/#"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected wildcard prefix to fail")
	}
	cfg.TopicPrefix = "rounds"
	cfg.QoS = 3
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected qos error")
	}
}

func TestBackboneRoundTrip(t *testing.T) {
	mc := &mockClient{loop: true}
	installMock(t, mc)
	b, err := NewBackbone(Config{Broker: "tcp://localhost:1883", ClientID: "id", TopicPrefix: "ward/", QoS: 1})
	if err != nil {
		t.Fatalf("backbone: %v", err)
	}
	var mu sync.Mutex
	got := map[string]string{}
	if err := b.Subscribe(context.Background(), func(group string, frame []byte) {
		mu.Lock()
		got[group] = string(frame)
		mu.Unlock()
	}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(mc.subscribed) != 1 || mc.subscribed[0].topic != "ward/+" || mc.subscribed[0].qos != 1 {
		t.Fatalf("unexpected subscriptions %+v", mc.subscribed)
	}
	if err := b.Publish(context.Background(), fanout.GroupScheduler, []byte(`{"batch_id":1}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if mc.published[0].topic != "ward/scheduler" {
		t.Fatalf("published on %s", mc.published[0].topic)
	}
	mu.Lock()
	defer mu.Unlock()
	if got[fanout.GroupScheduler] != `{"batch_id":1}` {
		t.Fatalf("frame not delivered: %v", got)
	}
}

func TestBackboneDropsUnknownTopics(t *testing.T) {
	mc := &mockClient{}
	installMock(t, mc)
	b, err := NewBackbone(Config{Broker: "tcp://localhost:1883", TopicPrefix: "ward"})
	if err != nil {
		t.Fatalf("backbone: %v", err)
	}
	calls := 0
	_ = b.Subscribe(context.Background(), func(string, []byte) { calls++ })
	b.onFrame(nil, mockMessage{topic: "ward/unknown", p: []byte("{}")})
	b.onFrame(nil, mockMessage{topic: "other/help", p: []byte("{}")})
	b.onFrame(nil, mockMessage{topic: "ward/help", p: []byte("{}")})
	if calls != 1 {
		t.Fatalf("expected only the help frame, got %d calls", calls)
	}
}

func TestResubscribeOnReconnect(t *testing.T) {
	mc := &mockClient{}
	installMock(t, mc)
	b, err := NewBackbone(Config{Broker: "tcp://localhost:1883"})
	if err != nil {
		t.Fatalf("backbone: %v", err)
	}
	if len(mc.subscribed) != 0 {
		t.Fatalf("subscribed before Subscribe was called")
	}
	_ = b.Subscribe(context.Background(), func(string, []byte) {})
	mc.opts.OnConnect(mc)
	if len(mc.subscribed) != 2 {
		t.Fatalf("expected resubscription, got %d", len(mc.subscribed))
	}
}

func TestLWTConfigured(t *testing.T) {
	mc := &mockClient{}
	installMock(t, mc)
	cfg := Config{Broker: "tcp://localhost:1883", ClientID: "id", LWTTopic: "lwt", LWTPayload: "bye", LWTQoS: 1}
	b, err := NewBackbone(cfg)
	if err != nil {
		t.Fatalf("backbone: %v", err)
	}
	if !mc.opts.WillEnabled {
		t.Fatalf("will not enabled")
	}
	if mc.opts.WillTopic != "lwt" || string(mc.opts.WillPayload) != "bye" {
		t.Fatalf("will options incorrect")
	}
	_ = b.Close()
	if len(mc.published) != 0 {
		t.Fatalf("unexpected publish on disconnect")
	}
}

func TestRetryLogic(t *testing.T) {
	mc := &mockClient{publishErrs: []error{fmt.Errorf("net fail"), nil}}
	installMock(t, mc)
	b, err := NewBackbone(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 1, BackoffMS: 1})
	if err != nil {
		t.Fatalf("backbone: %v", err)
	}
	if err := b.Publish(context.Background(), fanout.GroupHelp, []byte(`{}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected retries")
	}
}

func TestPublishErrorCaptured(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail}}
	installMock(t, mc)
	mon := &monitoring.Memory{}
	prev := monitoring.Init(mon)
	defer monitoring.Init(prev)

	b, err := NewBackbone(Config{Broker: "tcp://localhost:1883", ClientID: "id", MaxRetries: 2, BackoffMS: 1})
	if err != nil {
		t.Fatalf("backbone: %v", err)
	}
	err = b.Publish(context.Background(), fanout.GroupEmergency, []byte(`{}`))
	if !errors.Is(err, fail) {
		t.Fatalf("expected publish error, got %v", err)
	}
	if len(mc.published) != 3 {
		t.Fatalf("expected 3 attempts, got %d", len(mc.published))
	}
	events := mon.Events()
	if len(events) != 1 {
		t.Fatalf("error not captured")
	}
	if events[0].Tags["group"] != fanout.GroupEmergency || events[0].Tags["module"] != "mqtt" {
		t.Fatalf("tags not set: %v", events[0].Tags)
	}
}

func TestPublishStopsOnCancel(t *testing.T) {
	fail := errors.New("net fail")
	mc := &mockClient{publishErrs: []error{fail, fail, fail, fail}}
	installMock(t, mc)
	b, err := NewBackbone(Config{Broker: "tcp://localhost:1883", MaxRetries: 3, BackoffMS: 1000})
	if err != nil {
		t.Fatalf("backbone: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	err = b.Publish(ctx, fanout.GroupHelp, []byte(`{}`))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if time.Since(start) > 500*time.Millisecond || len(mc.published) != 1 {
		t.Fatalf("publish kept retrying after cancel")
	}
}

// mockClient implements pahoClient for tests. With loop set, published
// frames are handed to the subscribed handler as a broker would.
type mockClient struct {
	opts       *paho.ClientOptions
	loop       bool
	handler    paho.MessageHandler
	subscribed []struct {
		topic string
		qos   byte
	}
	published []struct {
		topic string
		qos   byte
	}
	publishErrs []error
}

func (m *mockClient) IsConnected() bool { return true }
func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return &dummyToken{}
}
func (m *mockClient) Disconnect(uint) {}
func (m *mockClient) Publish(topic string, qos byte, _ bool, payload interface{}) paho.Token {
	m.published = append(m.published, struct {
		topic string
		qos   byte
	}{topic, qos})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		if err != nil {
			return &dummyToken{err: err}
		}
	}
	if m.loop && m.handler != nil {
		m.handler(m, mockMessage{topic: topic, p: payload.([]byte)})
	}
	return &dummyToken{}
}
func (m *mockClient) Subscribe(topic string, qos byte, h paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, struct {
		topic string
		qos   byte
	}{topic, qos})
	m.handler = h
	return &dummyToken{}
}
func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return &dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return &dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct {
	topic string
	p     []byte
}

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return m.topic }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
