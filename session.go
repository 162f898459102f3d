package mqtt311

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Session is an MQTT 3.1.1 client session on top of a Connection: the
// CONNECT/CONNACK handshake, subscriptions, keep-alive and graceful
// disconnect.
//
// Receive and Subscribe read from the same stream and must be called from
// one goroutine. Packets that arrive while Subscribe waits for SUBACK are
// kept and returned by later Receive calls. PINGRESP packets are consumed
// by the session.
type Session struct {
	conn    *Connection
	options *sessionOptions
	logger  Logger

	clientID ClientID

	// backlog holds packets received during Subscribe.
	backlog []Packet

	cancel    context.CancelFunc
	loopDone  chan struct{}
	closeOnce sync.Once
}

// Connect dials the broker, sends CONNECT and waits for CONNACK.
//
// A CONNACK with a non-zero return code closes the connection and returns
// a *ConnectError; errors.Is(err, ErrAuthFailed) reports rejected
// credentials.
func Connect(ctx context.Context, address string, opts ...SessionOption) (*Session, error) {
	options := defaultSessionOptions()
	for _, opt := range opts {
		opt(options)
	}

	connect, err := options.connectPacket()
	if err != nil {
		return nil, err
	}

	conn, err := Dial(ctx, address, options.connectionOptions...)
	if err != nil {
		return nil, err
	}

	s, err := newSession(ctx, conn, connect, options)
	if err != nil {
		conn.Close()
		return nil, err
	}

	return s, nil
}

// NewSession performs the handshake over an already started Connection.
// On failure the connection is left open and owned by the caller.
func NewSession(ctx context.Context, conn *Connection, opts ...SessionOption) (*Session, error) {
	options := defaultSessionOptions()
	for _, opt := range opts {
		opt(options)
	}

	connect, err := options.connectPacket()
	if err != nil {
		return nil, err
	}

	return newSession(ctx, conn, connect, options)
}

func (o *sessionOptions) connectPacket() (*ConnectPacket, error) {
	var id ClientID
	if o.clientID != "" {
		id = NewClientID(o.clientID)
	}

	connect, err := NewConnectPacket(id, o.keepAlive)
	if err != nil {
		return nil, err
	}

	connect.Username = o.username
	connect.Password = o.password

	if err := connect.Validate(); err != nil {
		return nil, err
	}

	return connect, nil
}

func newSession(ctx context.Context, conn *Connection, connect *ConnectPacket, options *sessionOptions) (*Session, error) {
	s := &Session{
		conn:     conn,
		options:  options,
		logger:   conn.logger.WithFields(LogFields{LogFieldClientID: connect.ClientID.String()}),
		clientID: connect.ClientID,
		loopDone: make(chan struct{}),
	}

	if err := s.handshake(ctx, connect); err != nil {
		return nil, err
	}

	var loopCtx context.Context
	loopCtx, s.cancel = context.WithCancel(context.Background())
	go s.keepAliveLoop(loopCtx)

	return s, nil
}

func (s *Session) handshake(ctx context.Context, connect *ConnectPacket) error {
	ctx, cancel := s.responseContext(ctx)
	defer cancel()

	if err := s.conn.SendContext(ctx, connect); err != nil {
		return fmt.Errorf("send CONNECT: %w", err)
	}

	packet, err := s.conn.Receive(ctx)
	if err != nil {
		return fmt.Errorf("wait for CONNACK: %w", err)
	}

	connack, ok := packet.(*ConnackPacket)
	if !ok {
		return fmt.Errorf("%w: expected CONNACK, got %s", ErrUnexpectedPacket, packet.Type())
	}

	if connack.ReturnCode != ConnackAccepted {
		s.logger.Warn("connection refused", LogFields{LogFieldReturnCode: connack.ReturnCode.String()})
		return NewConnectError(connack.ReturnCode)
	}

	s.logger.Info("session established", LogFields{"session_present": connack.SessionPresent()})

	return nil
}

func (s *Session) responseContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.options.responseTimeout > 0 {
		return context.WithTimeout(ctx, s.options.responseTimeout)
	}
	return context.WithCancel(ctx)
}

// ClientID returns the identifier sent in CONNECT.
func (s *Session) ClientID() ClientID {
	return s.clientID
}

// Connection returns the underlying connection.
func (s *Session) Connection() *Connection {
	return s.conn
}

// Subscribe subscribes to the topic filters at QoS 0 and waits for the
// SUBACK. The session never acknowledges deliveries, so it does not ask
// for QoS 1 or 2.
//
// The granted return codes are returned in filter order. If the broker
// refuses any filter, the error joins one *SubscribeError per refused
// filter and the return codes are still returned.
func (s *Session) Subscribe(ctx context.Context, filters ...string) ([]SubackReturnCode, error) {
	subscribe := NewSubscribePacket(filters...)

	ctx, cancel := s.responseContext(ctx)
	defer cancel()

	if err := s.conn.SendContext(ctx, subscribe); err != nil {
		return nil, fmt.Errorf("send SUBSCRIBE: %w", err)
	}

	for {
		packet, err := s.conn.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("wait for SUBACK: %w", err)
		}

		suback, ok := packet.(*SubackPacket)
		if !ok || suback.PacketID != subscribe.ID() {
			s.keep(packet)
			continue
		}

		if len(suback.ReturnCodes) != len(filters) {
			return suback.ReturnCodes, fmt.Errorf("%w: SUBACK has %d return codes for %d filters",
				ErrMalformedPacket, len(suback.ReturnCodes), len(filters))
		}

		var errs []error
		for i, code := range suback.ReturnCodes {
			if code.Granted() {
				s.logger.Info("subscribed", LogFields{LogFieldTopic: filters[i], LogFieldReturnCode: code.String()})
				continue
			}
			s.logger.Warn("subscription refused", LogFields{LogFieldTopic: filters[i], LogFieldReturnCode: code.String()})
			errs = append(errs, NewSubscribeError(filters[i], code))
		}

		return suback.ReturnCodes, errors.Join(errs...)
	}
}

func (s *Session) keep(packet Packet) {
	if _, ok := packet.(*PingrespPacket); ok {
		return
	}
	s.backlog = append(s.backlog, packet)
}

// Receive returns the next packet from the broker other than PINGRESP.
// After the connection terminates it returns the terminal error.
func (s *Session) Receive(ctx context.Context) (Packet, error) {
	if len(s.backlog) > 0 {
		packet := s.backlog[0]
		s.backlog[0] = nil
		s.backlog = s.backlog[1:]
		return packet, nil
	}

	for {
		packet, err := s.conn.Receive(ctx)
		if err != nil {
			return nil, err
		}
		if _, ok := packet.(*PingrespPacket); ok {
			continue
		}
		return packet, nil
	}
}

// Done returns a channel that is closed when the connection terminates.
func (s *Session) Done() <-chan struct{} {
	return s.conn.Done()
}

// Close sends DISCONNECT, waits for it to be written and closes the
// connection. Close is idempotent.
func (s *Session) Close() error {
	var err error

	s.closeOnce.Do(func() {
		s.cancel()
		<-s.loopDone

		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()

		if sendErr := s.conn.SendContext(ctx, &DisconnectPacket{}); sendErr == nil {
			err = s.conn.Flush(ctx)
		} else if !errors.Is(sendErr, ErrConnectionClosed) {
			err = sendErr
		}

		s.conn.Close()
		s.logger.Info("session closed", nil)
	})

	return err
}

// keepAliveLoop sends PINGREQ when nothing was written for half the
// keep-alive interval, and closes the connection when the broker stays
// silent past the deadline of a PINGREQ.
func (s *Session) keepAliveLoop(ctx context.Context) {
	defer close(s.loopDone)

	timer := newKeepAliveTimer(s.options.keepAlive)
	if !timer.Enabled() {
		return
	}

	ticker := time.NewTicker(timer.CheckInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.conn.Done():
			return
		case now := <-ticker.C:
			timer.Activity(s.conn.LastRead())

			if timer.IsExpired(now) {
				s.logger.Warn("broker did not answer PINGREQ", nil)
				s.conn.terminate(NewConnectionLostError(ErrKeepAliveTimeout))
				return
			}

			if !timer.PingDue(s.conn.LastWrite(), now) {
				continue
			}

			if err := s.conn.TrySend(&PingreqPacket{}); err != nil {
				s.logger.Warn("keep-alive ping failed", LogFields{LogFieldError: err.Error()})
				continue
			}
			timer.PingSent(now)
		}
	}
}
