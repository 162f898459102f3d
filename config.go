package mqtt311

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/xid"
	"gopkg.in/yaml.v3"
)

// ClientIDAuto in Config.ClientID asks for a generated identifier.
const ClientIDAuto = "auto"

// Configuration errors.
var (
	ErrConfigNoBroker    = errors.New("config: broker address is required")
	ErrConfigQoSNotAcked = errors.New("config: only qos 0 is supported, deliveries are not acknowledged")
)

// Config describes a client session in a YAML file. QoS must be 0 when
// set: the client does not send PUBACK, PUBREC or PUBCOMP.
//
//	broker: "mqtt://localhost:1883"
//	client_id: auto
//	keep_alive: 60
//	username: user
//	password: secret
//	topics:
//	  - sensors/#
//	proxy: "socks5://proxy:1080"
//	send_queue_size: 64
//	max_packet_size: 1048576
//	send_rate: 100
//	response_timeout: 10s
type Config struct {
	Broker          string        `yaml:"broker" json:"broker"`
	ClientID        string        `yaml:"client_id" json:"client_id"`
	KeepAlive       *uint16       `yaml:"keep_alive" json:"keep_alive"`
	Username        string        `yaml:"username" json:"username"`
	Password        string        `yaml:"password" json:"password"`
	Topics          []string      `yaml:"topics" json:"topics"`
	QoS             byte          `yaml:"qos" json:"qos"`
	Proxy           string        `yaml:"proxy" json:"proxy"`
	SendQueueSize   int           `yaml:"send_queue_size" json:"send_queue_size"`
	MaxPacketSize   uint32        `yaml:"max_packet_size" json:"max_packet_size"`
	SendRate        float64       `yaml:"send_rate" json:"send_rate"`
	ResponseTimeout time.Duration `yaml:"response_timeout" json:"response_timeout"`
}

// LoadConfig parses a YAML configuration.
func LoadConfig(r io.Reader) (*Config, error) {
	cfg := new(Config)

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: %w", err)
	}

	if cfg.ClientID == ClientIDAuto {
		cfg.ClientID = GenerateClientID()
	}

	return cfg, nil
}

// LoadConfigFile parses the YAML configuration file at path.
func LoadConfigFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	return LoadConfig(f)
}

// Validate checks the configuration without connecting.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return ErrConfigNoBroker
	}

	if _, err := parseAddress(c.Broker); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if c.ClientID != "" {
		if err := NewClientID(c.ClientID).Validate(); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	if c.Password != "" && c.Username == "" {
		return fmt.Errorf("config: %w", ErrPasswordWithoutUsername)
	}

	if c.QoS > 2 {
		return fmt.Errorf("config: %w: %d", ErrInvalidQoS, c.QoS)
	}
	if c.QoS > 0 {
		return ErrConfigQoSNotAcked
	}

	for _, topic := range c.Topics {
		if err := ValidateTopicFilter(topic); err != nil {
			return fmt.Errorf("config: %w", err)
		}
	}

	return nil
}

// SessionOptions converts the configuration into options for Connect.
func (c *Config) SessionOptions() []SessionOption {
	opts := []SessionOption{
		WithClientID(c.ClientID),
		WithCredentials(c.Username, c.Password),
	}

	if c.KeepAlive != nil {
		opts = append(opts, WithKeepAlive(*c.KeepAlive))
	}

	if c.ResponseTimeout > 0 {
		opts = append(opts, WithResponseTimeout(c.ResponseTimeout))
	}

	var connOpts []Option
	if c.Proxy != "" {
		connOpts = append(connOpts, WithProxy(c.Proxy))
	}
	if c.SendQueueSize > 0 {
		connOpts = append(connOpts, WithSendQueueSize(c.SendQueueSize))
	}
	if c.MaxPacketSize > 0 {
		connOpts = append(connOpts, WithMaxPacketSize(c.MaxPacketSize))
	}
	if c.SendRate > 0 {
		connOpts = append(connOpts, WithSendRate(c.SendRate, 1))
	}

	if len(connOpts) > 0 {
		opts = append(opts, WithConnectionOptions(connOpts...))
	}

	return opts
}

// GenerateClientID returns a new globally unique client identifier.
// xid strings are 20 lowercase base32 characters, which every MQTT 3.1.1
// broker must accept.
func GenerateClientID() string {
	return xid.New().String()
}
