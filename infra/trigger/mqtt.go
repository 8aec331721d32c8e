package trigger

import (
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"os"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/kilianp07/errandplan/core/events"
	coretrigger "github.com/kilianp07/errandplan/core/trigger"
	"github.com/kilianp07/errandplan/infra/logger"
	"github.com/kilianp07/errandplan/internal/eventbus"
)

const (
	defaultReplanTopic   = "errandplan/replan"
	defaultAnnounceTopic = "errandplan/schedule/updated"
)

// Config defines the connection parameters for the Paho MQTT trigger.
type Config struct {
	Broker        string      `json:"broker"`
	ClientID      string      `json:"client_id"`
	Username      string      `json:"username"`
	Password      string      `json:"password"`
	ReplanTopic   string      `json:"replan_topic"`
	AnnounceTopic string      `json:"announce_topic"`
	QoS           byte        `json:"qos"`
	UseTLS        bool        `json:"use_tls"`
	ClientCert    string      `json:"client_cert"`
	ClientKey     string      `json:"client_key"`
	CABundle      string      `json:"ca_bundle"`
	MaxRetries    int         `json:"max_retries"`
	BackoffMS     int         `json:"backoff_ms"`
	TLSConfig     *tls.Config `json:"-"`
}

func (c Config) withDefaults() Config {
	if c.ReplanTopic == "" {
		c.ReplanTopic = defaultReplanTopic
	}
	if c.AnnounceTopic == "" {
		c.AnnounceTopic = defaultAnnounceTopic
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.BackoffMS <= 0 {
		c.BackoffMS = 100
	}
	return c
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

type pahoClient interface {
	IsConnected() bool
	Connect() paho.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) paho.Token
	Subscribe(topic string, qos byte, callback paho.MessageHandler) paho.Token
}

var newMQTTClient = func(opts *paho.ClientOptions) pahoClient {
	return paho.NewClient(opts)
}

// PahoTrigger bridges an MQTT broker and the planner: messages on the replan
// topic become ReplanRequested events on the internal bus, and completed runs
// are announced back on the announce topic.
type PahoTrigger struct {
	cli     pahoClient
	cfg     Config
	bus     eventbus.EventBus
	log     logger.Logger
	backoff time.Duration
}

var _ coretrigger.Announcer = (*PahoTrigger)(nil)

// NewPahoTrigger connects to the broker and subscribes to the replan topic.
func NewPahoTrigger(cfg Config, bus eventbus.EventBus) (*PahoTrigger, error) {
	cfg = cfg.withDefaults()
	opts, err := NewClientOptions(cfg)
	if err != nil {
		return nil, err
	}

	log := logger.New("mqtt-trigger")
	pt := &PahoTrigger{
		cfg:     cfg,
		bus:     bus,
		log:     log,
		backoff: time.Duration(cfg.BackoffMS) * time.Millisecond,
	}

	opts.OnConnect = func(c paho.Client) {
		log.Infof("MQTT connected")
		if token := c.Subscribe(cfg.ReplanTopic, cfg.QoS, pt.onReplan); token.Wait() && token.Error() != nil {
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
	pt.cli = c
	return pt, nil
}

// NewClientOptions builds mqtt client options from Config.
func NewClientOptions(cfg Config) (*paho.ClientOptions, error) {
	opts := paho.NewClientOptions().AddBroker(cfg.Broker).SetClientID(cfg.ClientID)
	opts.AutoReconnect = true
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	if cfg.UseTLS {
		tlsCfg, err := cfg.LoadTLSConfig()
		if err != nil {
			return nil, err
		}
		opts.SetTLSConfig(tlsCfg)
	}
	return opts, nil
}

func (p *PahoTrigger) onReplan(_ paho.Client, msg paho.Message) {
	source := "mqtt"
	if len(msg.Payload()) > 0 {
		var m struct {
			Source string `json:"source"`
		}
		if err := json.Unmarshal(msg.Payload(), &m); err != nil {
			p.log.Errorf("failed to decode replan request: %v", err)
		} else if m.Source != "" {
			source = m.Source
		}
	}
	p.log.Infof("replan requested via MQTT (source %s)", source)
	p.bus.Publish(events.ReplanRequested{Source: source, At: time.Now()})
}

// AnnounceRun publishes the run summary, retrying transient publish failures.
func (p *PahoTrigger) AnnounceRun(runID string, placed, unschedulable int, at time.Time) error {
	payload, err := json.Marshal(struct {
		RunID         string `json:"run_id"`
		Placed        int    `json:"placed"`
		Unschedulable int    `json:"unschedulable"`
		Timestamp     int64  `json:"timestamp"`
	}{
		RunID:         runID,
		Placed:        placed,
		Unschedulable: unschedulable,
		Timestamp:     at.UnixMilli(),
	})
	if err != nil {
		return err
	}

	var publishErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		token := p.cli.Publish(p.cfg.AnnounceTopic, p.cfg.QoS, false, payload)
		token.Wait()
		publishErr = token.Error()
		if publishErr == nil {
			p.log.Infof("announced run %s on %s", runID, p.cfg.AnnounceTopic)
			return nil
		}
		p.log.Errorf("publish attempt %d failed: %v", attempt+1, publishErr)
		time.Sleep(p.backoff * time.Duration(1<<attempt))
	}
	return publishErr
}

// Close gracefully closes the MQTT connection.
func (p *PahoTrigger) Close() {
	if p.cli != nil && p.cli.IsConnected() {
		p.cli.Disconnect(250)
	}
}
