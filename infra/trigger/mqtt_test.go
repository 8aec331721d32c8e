package trigger

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
	"math/big"
	"os"
	"strings"
	"testing"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/errandplan/core/events"
	"github.com/kilianp07/errandplan/internal/eventbus"
)

func withMockClient(t *testing.T) *mockClient {
	t.Helper()
	mc := &mockClient{handlers: map[string]paho.MessageHandler{}}
	newMQTTClient = func(o *paho.ClientOptions) pahoClient { mc.opts = o; return mc }
	t.Cleanup(func() {
		newMQTTClient = func(opts *paho.ClientOptions) pahoClient { return paho.NewClient(opts) }
	})
	return mc
}

func TestTriggerPublishesReplanRequests(t *testing.T) {
	mc := withMockClient(t)
	bus := eventbus.NewBuffered(4)
	sub := bus.Subscribe()

	trig, err := NewPahoTrigger(Config{Broker: "tcp://localhost:1883", ClientID: "test"}, bus)
	if err != nil {
		t.Fatalf("new trigger: %v", err)
	}
	defer trig.Close()

	handler, ok := mc.handlers[defaultReplanTopic]
	if !ok {
		t.Fatalf("expected subscription on %s, got %v", defaultReplanTopic, mc.subscribed)
	}

	handler(nil, mockMessage{p: []byte(`{"source":"phone"}`)})
	handler(nil, mockMessage{p: nil})

	first := mustReplanEvent(t, sub)
	if first.Source != "phone" {
		t.Fatalf("expected source from payload, got %q", first.Source)
	}
	second := mustReplanEvent(t, sub)
	if second.Source != "mqtt" {
		t.Fatalf("expected default source, got %q", second.Source)
	}
	if second.At.IsZero() {
		t.Fatal("expected event timestamp set")
	}
}

func mustReplanEvent(t *testing.T, sub <-chan eventbus.Event) events.ReplanRequested {
	t.Helper()
	select {
	case e := <-sub:
		req, ok := e.(events.ReplanRequested)
		if !ok {
			t.Fatalf("unexpected event type %T", e)
		}
		return req
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for replan event")
		return events.ReplanRequested{}
	}
}

func TestAnnounceRunRetries(t *testing.T) {
	mc := withMockClient(t)
	mc.publishErrs = []error{fmt.Errorf("net fail"), nil}

	trig, err := NewPahoTrigger(Config{Broker: "tcp://localhost:1883", ClientID: "test", BackoffMS: 1}, eventbus.New())
	if err != nil {
		t.Fatalf("new trigger: %v", err)
	}
	defer trig.Close()

	if err := trig.AnnounceRun("run-1", 3, 1, time.Now()); err != nil {
		t.Fatalf("announce: %v", err)
	}
	if len(mc.published) != 2 {
		t.Fatalf("expected a retry, got %d publishes", len(mc.published))
	}
	last := mc.published[len(mc.published)-1]
	if last.topic != defaultAnnounceTopic {
		t.Fatalf("unexpected topic %s", last.topic)
	}
	if !strings.Contains(string(last.payload), `"run_id":"run-1"`) {
		t.Fatalf("unexpected payload %s", last.payload)
	}
}

func TestNewClientOptionsAuth(t *testing.T) {
	opts, err := NewClientOptions(Config{Broker: "tcp://localhost:1883", ClientID: "id", Username: "u", Password: "p"})
	if err != nil {
		t.Fatalf("opts: %v", err)
	}
	if opts.Username != "u" || opts.Password != "p" {
		t.Fatal("auth not set")
	}
}

func TestLoadTLSConfig(t *testing.T) {
	cert, key, ca := generateCert(t)
	cfg := Config{UseTLS: true, ClientCert: cert, ClientKey: key, CABundle: ca}
	tlsCfg, err := cfg.LoadTLSConfig()
	if err != nil {
		t.Fatalf("load tls: %v", err)
	}
	if len(tlsCfg.Certificates) == 0 || tlsCfg.RootCAs == nil {
		t.Fatal("tls material not loaded")
	}
}

func generateCert(t *testing.T) (certFile, keyFile, caFile string) {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("gen key: %v", err)
	}
	tmpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "test"},
		NotBefore:    time.Now(),
		NotAfter:     time.Now().Add(time.Hour),
	}
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
	for path, data := range map[string][]byte{certFile: certPEM, keyFile: keyPEM, caFile: certPEM} {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatalf("write %s: %v", path, err)
		}
	}
	return
}

// mockClient implements pahoClient for tests.
type mockClient struct {
	opts        *paho.ClientOptions
	subscribed  []string
	handlers    map[string]paho.MessageHandler
	published   []publishedMsg
	publishErrs []error
}

type publishedMsg struct {
	topic   string
	payload []byte
}

func (m *mockClient) IsConnected() bool { return true }

func (m *mockClient) Connect() paho.Token {
	if m.opts != nil && m.opts.OnConnect != nil {
		m.opts.OnConnect(m)
	}
	return dummyToken{}
}

func (m *mockClient) Disconnect(uint) {}

func (m *mockClient) Publish(topic string, _ byte, _ bool, payload interface{}) paho.Token {
	raw, _ := payload.([]byte)
	m.published = append(m.published, publishedMsg{topic: topic, payload: raw})
	if len(m.publishErrs) > 0 {
		err := m.publishErrs[0]
		m.publishErrs = m.publishErrs[1:]
		return dummyToken{err: err}
	}
	return dummyToken{}
}

func (m *mockClient) Subscribe(topic string, _ byte, callback paho.MessageHandler) paho.Token {
	m.subscribed = append(m.subscribed, topic)
	m.handlers[topic] = callback
	return dummyToken{}
}

func (m *mockClient) SubscribeMultiple(map[string]byte, paho.MessageHandler) paho.Token {
	return dummyToken{}
}
func (m *mockClient) Unsubscribe(...string) paho.Token        { return dummyToken{} }
func (m *mockClient) AddRoute(string, paho.MessageHandler)    {}
func (m *mockClient) OptionsReader() paho.ClientOptionsReader { return paho.ClientOptionsReader{} }
func (m *mockClient) IsConnectionOpen() bool                  { return true }

type dummyToken struct{ err error }

func (d dummyToken) Wait() bool                     { return true }
func (d dummyToken) WaitTimeout(time.Duration) bool { return true }
func (d dummyToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d dummyToken) Error() error                   { return d.err }

type mockMessage struct{ p []byte }

func (m mockMessage) Duplicate() bool   { return false }
func (m mockMessage) Qos() byte         { return 0 }
func (m mockMessage) Retained() bool    { return false }
func (m mockMessage) Topic() string     { return "" }
func (m mockMessage) MessageID() uint16 { return 0 }
func (m mockMessage) Payload() []byte   { return m.p }
func (m mockMessage) Ack()              {}
