package mqtt311

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/xid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfig = `
broker: "mqtt://localhost:1883"
client_id: sensor01
keep_alive: 30
username: user
password: secret
topics:
  - sensors/#
  - alerts/+
qos: 0
proxy: "socks5://proxy:1080"
send_queue_size: 128
max_packet_size: 1048576
send_rate: 50
response_timeout: 5s
`

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(testConfig))
	require.NoError(t, err)

	assert.Equal(t, "mqtt://localhost:1883", cfg.Broker)
	assert.Equal(t, "sensor01", cfg.ClientID)
	require.NotNil(t, cfg.KeepAlive)
	assert.Equal(t, uint16(30), *cfg.KeepAlive)
	assert.Equal(t, "user", cfg.Username)
	assert.Equal(t, "secret", cfg.Password)
	assert.Equal(t, []string{"sensors/#", "alerts/+"}, cfg.Topics)
	assert.Zero(t, cfg.QoS)
	assert.Equal(t, "socks5://proxy:1080", cfg.Proxy)
	assert.Equal(t, 128, cfg.SendQueueSize)
	assert.Equal(t, uint32(1048576), cfg.MaxPacketSize)
	assert.Equal(t, 50.0, cfg.SendRate)
	assert.Equal(t, 5*time.Second, cfg.ResponseTimeout)

	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigEmpty(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(""))
	require.NoError(t, err)
	assert.Nil(t, cfg.KeepAlive)
	assert.ErrorIs(t, cfg.Validate(), ErrConfigNoBroker)
}

func TestLoadConfigUnknownField(t *testing.T) {
	_, err := LoadConfig(strings.NewReader("broker: localhost:1883\nclean_start: true\n"))
	assert.Error(t, err)
}

func TestLoadConfigAutoClientID(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("broker: localhost:1883\nclient_id: auto\n"))
	require.NoError(t, err)

	assert.NotEqual(t, ClientIDAuto, cfg.ClientID)
	_, err = xid.FromString(cfg.ClientID)
	assert.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "sensor01", cfg.ClientID)

	_, err = LoadConfigFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{"minimal", Config{Broker: "localhost:1883"}, nil},
		{"no broker", Config{}, ErrConfigNoBroker},
		{"bad scheme", Config{Broker: "ssl://broker"}, ErrUnsupportedScheme},
		{"bad client id", Config{Broker: "localhost:1883", ClientID: "has space"}, ErrInvalidClientID},
		{"password only", Config{Broker: "localhost:1883", Password: "x"}, ErrPasswordWithoutUsername},
		{"bad qos", Config{Broker: "localhost:1883", QoS: 3}, ErrInvalidQoS},
		{"qos 1 not acknowledged", Config{Broker: "localhost:1883", QoS: 1}, ErrConfigQoSNotAcked},
		{"qos 2 not acknowledged", Config{Broker: "localhost:1883", QoS: 2}, ErrConfigQoSNotAcked},
		{"empty topic", Config{Broker: "localhost:1883", Topics: []string{"a", ""}}, ErrEmptyTopicFilter},
		{"bad wildcard", Config{Broker: "localhost:1883", Topics: []string{"a/#/b"}}, ErrInvalidTopicFilter},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestConfigSessionOptions(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader(testConfig))
	require.NoError(t, err)

	options := defaultSessionOptions()
	for _, opt := range cfg.SessionOptions() {
		opt(options)
	}

	assert.Equal(t, "sensor01", options.clientID)
	assert.Equal(t, "user", options.username)
	assert.Equal(t, []byte("secret"), options.password)
	assert.Equal(t, uint16(30), options.keepAlive)
	assert.Equal(t, 5*time.Second, options.responseTimeout)

	connOptions := applyOptions(options.connectionOptions)
	assert.Equal(t, "socks5://proxy:1080", connOptions.proxyURL)
	assert.Equal(t, 128, connOptions.sendQueueSize)
	assert.Equal(t, uint32(1048576), connOptions.maxPacketSize)
	assert.InDelta(t, 50.0, float64(connOptions.sendLimit), 0)
}

func TestConfigSessionOptionsDefaults(t *testing.T) {
	cfg := &Config{Broker: "localhost:1883"}

	options := defaultSessionOptions()
	for _, opt := range cfg.SessionOptions() {
		opt(options)
	}

	assert.Equal(t, DefaultKeepAlive, options.keepAlive)
	assert.Equal(t, DefaultResponseTimeout, options.responseTimeout)
	assert.Nil(t, options.password)
	assert.Empty(t, options.connectionOptions)
}

func TestConfigZeroKeepAlive(t *testing.T) {
	cfg, err := LoadConfig(strings.NewReader("broker: localhost:1883\nkeep_alive: 0\n"))
	require.NoError(t, err)

	options := defaultSessionOptions()
	for _, opt := range cfg.SessionOptions() {
		opt(options)
	}
	assert.Equal(t, uint16(0), options.keepAlive)
}

func TestGenerateClientID(t *testing.T) {
	seen := make(map[string]struct{})
	for range 100 {
		id := GenerateClientID()
		require.NoError(t, NewClientID(id).Validate())
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, 100)
}
