package mqtt311

import "time"

// Session defaults.
const (
	DefaultKeepAlive       uint16 = 60
	DefaultResponseTimeout        = 10 * time.Second
)

// sessionOptions holds configuration for a Session.
type sessionOptions struct {
	// CONNECT fields
	clientID  string
	username  string
	password  []byte
	keepAlive uint16

	responseTimeout time.Duration

	connectionOptions []Option
}

func defaultSessionOptions() *sessionOptions {
	return &sessionOptions{
		keepAlive:       DefaultKeepAlive,
		responseTimeout: DefaultResponseTimeout,
	}
}

// SessionOption configures a Session.
type SessionOption func(*sessionOptions)

// WithClientID sets the client identifier. An empty identifier is sent as
// absent and the broker assigns one.
func WithClientID(id string) SessionOption {
	return func(o *sessionOptions) {
		o.clientID = id
	}
}

// WithCredentials sets the username and password sent in CONNECT.
// An empty password is omitted.
func WithCredentials(username, password string) SessionOption {
	return func(o *sessionOptions) {
		o.username = username
		if password != "" {
			o.password = []byte(password)
		} else {
			o.password = nil
		}
	}
}

// WithKeepAlive sets the keep-alive interval in seconds. 0 disables PINGREQ.
func WithKeepAlive(seconds uint16) SessionOption {
	return func(o *sessionOptions) {
		o.keepAlive = seconds
	}
}

// WithResponseTimeout sets how long Connect waits for CONNACK and Subscribe
// waits for SUBACK.
func WithResponseTimeout(timeout time.Duration) SessionOption {
	return func(o *sessionOptions) {
		o.responseTimeout = timeout
	}
}

// WithConnectionOptions passes options to the underlying Connection.
func WithConnectionOptions(opts ...Option) SessionOption {
	return func(o *sessionOptions) {
		o.connectionOptions = append(o.connectionOptions, opts...)
	}
}
