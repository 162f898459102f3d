package mqtt311

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// State is the lifecycle state of a Connection.
type State int32

const (
	// StateConnecting means the transport is being set up.
	StateConnecting State = iota
	// StateEstablished means both directions are running.
	StateEstablished
	// StateClosed is terminal. Err reports why.
	StateClosed
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateEstablished:
		return "established"
	case StateClosed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// outboundPacket is a packet already encoded by Send, or a flush marker
// when flushed is set.
type outboundPacket struct {
	packetType PacketType
	data       []byte
	flushed    chan struct{}
}

// Connection is a full duplex MQTT packet stream over one transport.
//
// A reader goroutine splits the incoming byte stream into frames, decodes
// them and queues them for Receive in arrival order. A writer goroutine
// drains the outbound queue filled by Send in FIFO order. The first failure
// on either side, or Close, moves the connection to StateClosed and stops
// both goroutines.
//
// Connection does not interpret packets. The MQTT session rules live in Session.
type Connection struct {
	conn    Conn
	options *connectionOptions
	logger  Logger
	metrics *ConnectionMetrics
	limiter *rate.Limiter

	outbound chan outboundPacket
	inbound  chan Packet

	state     atomic.Int32
	lastWrite atomic.Int64
	lastRead  atomic.Int64

	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
	err       error

	readDone  chan struct{}
	writeDone chan struct{}
}

// Dial connects to a broker and starts a Connection over the transport.
//
// The address selects the transport:
//
//	host:port, tcp://host[:port], mqtt://host[:port]  TCP, default port 1883
//	ws://host[:port]/path                           WebSocket, subprotocol "mqtt"
//	unix:///path/to/socket                          Unix domain socket
//
// WithDialer replaces this selection entirely.
func Dial(ctx context.Context, address string, opts ...Option) (*Connection, error) {
	options := applyOptions(opts)

	dialer, target, err := options.dialerFor(address)
	if err != nil {
		return nil, err
	}

	if options.connectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, options.connectTimeout)
		defer cancel()
	}

	options.logger.Debug("dialing broker", LogFields{LogFieldRemoteAddr: address})

	conn, err := dialer.Dial(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}

	c := newConnection(conn, options)
	c.start()

	return c, nil
}

// NewConnection starts a Connection over an already established transport.
// The Connection takes ownership of conn and closes it when it terminates.
func NewConnection(conn Conn, opts ...Option) *Connection {
	c := newConnection(conn, applyOptions(opts))
	c.start()
	return c
}

func newConnection(conn Conn, options *connectionOptions) *Connection {
	ctx, cancel := context.WithCancel(context.Background())

	fields := LogFields{}
	if addr := conn.RemoteAddr(); addr != nil {
		fields[LogFieldRemoteAddr] = addr.String()
	}

	c := &Connection{
		conn:      conn,
		options:   options,
		logger:    options.logger.WithFields(fields),
		metrics:   NewConnectionMetrics(options.metrics),
		outbound:  make(chan outboundPacket, options.sendQueueSize),
		inbound:   make(chan Packet, options.receiveQueueSize),
		ctx:       ctx,
		cancel:    cancel,
		readDone:  make(chan struct{}),
		writeDone: make(chan struct{}),
	}

	if options.sendLimit > 0 {
		c.limiter = rate.NewLimiter(options.sendLimit, options.sendBurst)
	}

	c.state.Store(int32(StateConnecting))

	return c
}

func (c *Connection) start() {
	now := time.Now().UnixNano()
	c.lastWrite.Store(now)
	c.lastRead.Store(now)
	c.state.Store(int32(StateEstablished))
	c.metrics.ConnectionOpened()
	c.logger.Info("connection established", LogFields{LogFieldState: StateEstablished.String()})

	go c.readLoop()
	go c.writeLoop()
}

// State returns the current lifecycle state.
func (c *Connection) State() State {
	return State(c.state.Load())
}

// Done returns a channel that is closed when the connection terminates.
func (c *Connection) Done() <-chan struct{} {
	return c.ctx.Done()
}

// Err returns the terminal error, or nil while the connection is open.
// It is ErrConnectionClosed after Close, and a *ConnectionLostError when
// the transport failed or the broker sent a malformed stream.
func (c *Connection) Err() error {
	select {
	case <-c.ctx.Done():
		return c.err
	default:
		return nil
	}
}

// Send encodes the packet and queues it for the writer.
//
// Encoding errors are returned immediately and nothing is queued. When the
// outbound queue is full Send waits for the writer to take a packet, so
// packets are never dropped and go out in the order Send was called. It
// returns ErrConnectionClosed once the connection has terminated. A packet
// queued shortly before termination may never be written.
func (c *Connection) Send(packet Packet) error {
	return c.SendContext(context.Background(), packet)
}

// TrySend is like Send but never waits: it returns ErrSendQueueFull when
// the outbound queue is at capacity.
func (c *Connection) TrySend(packet Packet) error {
	msg, err := c.prepare(packet)
	if err != nil {
		return err
	}

	select {
	case c.outbound <- msg:
		c.metrics.QueueDepth(len(c.outbound))
		return nil
	default:
		return ErrSendQueueFull
	}
}

// SendContext is like Send but stops waiting for room in the outbound
// queue when ctx is done.
func (c *Connection) SendContext(ctx context.Context, packet Packet) error {
	msg, err := c.prepare(packet)
	if err != nil {
		return err
	}

	select {
	case c.outbound <- msg:
		c.metrics.QueueDepth(len(c.outbound))
		return nil
	case <-c.ctx.Done():
		return c.closedError()
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Connection) prepare(packet Packet) (outboundPacket, error) {
	if c.Err() != nil {
		return outboundPacket{}, c.closedError()
	}

	data, err := EncodePacket(packet)
	if err != nil {
		return outboundPacket{}, fmt.Errorf("encode %s: %w", packet.Type(), err)
	}

	return outboundPacket{packetType: packet.Type(), data: data}, nil
}

// Flush waits until every packet queued before the call has been written
// to the transport.
func (c *Connection) Flush(ctx context.Context) error {
	if c.Err() != nil {
		return c.closedError()
	}

	marker := outboundPacket{flushed: make(chan struct{})}

	select {
	case c.outbound <- marker:
	case <-c.ctx.Done():
		return c.closedError()
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-marker.flushed:
		return nil
	case <-c.ctx.Done():
		return c.closedError()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// LastWrite returns when the last packet was written, or the time the
// connection was established if nothing was written yet.
func (c *Connection) LastWrite() time.Time {
	return time.Unix(0, c.lastWrite.Load())
}

// LastRead returns when the last packet was received, or the time the
// connection was established if nothing was received yet.
func (c *Connection) LastRead() time.Time {
	return time.Unix(0, c.lastRead.Load())
}

func (c *Connection) closedError() error {
	if c.err == nil || errors.Is(c.err, ErrConnectionClosed) {
		return ErrConnectionClosed
	}
	return fmt.Errorf("%w: %w", ErrConnectionClosed, c.err)
}

// Receive returns the next packet from the broker.
//
// Packets decoded before the connection terminated are delivered first;
// after that Receive returns the terminal error. It returns ctx.Err() if
// ctx is done before a packet arrives.
func (c *Connection) Receive(ctx context.Context) (Packet, error) {
	select {
	case packet, ok := <-c.inbound:
		if !ok {
			return nil, c.Err()
		}
		return packet, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close terminates the connection and waits for both goroutines to stop.
// Queued packets that were not yet written are dropped. Close is idempotent.
func (c *Connection) Close() error {
	c.terminate(ErrConnectionClosed)

	<-c.readDone
	<-c.writeDone

	return nil
}

// terminate records the first terminal error and tears the transport down.
// Closing the transport unblocks a reader waiting in Read.
func (c *Connection) terminate(cause error) {
	c.closeOnce.Do(func() {
		c.err = cause
		c.state.Store(int32(StateClosed))
		c.cancel()

		if err := c.conn.Close(); err != nil {
			c.logger.Debug("transport close failed", LogFields{LogFieldError: err.Error()})
		}

		failed := !errors.Is(cause, ErrConnectionClosed)
		c.metrics.ConnectionClosed(failed)

		if failed {
			c.logger.Warn("connection lost", LogFields{
				LogFieldState: StateClosed.String(),
				LogFieldError: cause.Error(),
			})
		} else {
			c.logger.Info("connection closed", LogFields{LogFieldState: StateClosed.String()})
		}
	})
}

func (c *Connection) readLoop() {
	defer close(c.readDone)
	defer close(c.inbound)

	frames := NewFrameReader(c.conn, c.options.maxPacketSize)

	for {
		frame, err := frames.Next()
		if err != nil {
			c.terminate(NewConnectionLostError(err))
			return
		}

		packet, err := DecodePacket(frame)
		if err != nil {
			c.terminate(NewConnectionLostError(err))
			return
		}

		c.lastRead.Store(time.Now().UnixNano())
		c.metrics.PacketReceived(packet.Type(), len(frame.Raw))
		c.logger.Debug("packet received", LogFields{
			LogFieldPacketType: packet.Type().String(),
			LogFieldBytes:      len(frame.Raw),
		})

		select {
		case c.inbound <- packet:
		case <-c.ctx.Done():
			return
		}
	}
}

func (c *Connection) writeLoop() {
	defer close(c.writeDone)

	for {
		select {
		case <-c.ctx.Done():
			return
		case msg := <-c.outbound:
			c.metrics.QueueDepth(len(c.outbound))

			if msg.flushed != nil {
				close(msg.flushed)
				continue
			}

			if c.limiter != nil {
				if err := c.limiter.Wait(c.ctx); err != nil {
					return
				}
			}

			if err := c.write(msg); err != nil {
				c.terminate(NewConnectionLostError(err))
				return
			}
		}
	}
}

func (c *Connection) write(msg outboundPacket) error {
	if c.options.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.options.writeTimeout)); err != nil {
			return err
		}
	}

	start := time.Now()

	n, err := c.conn.Write(msg.data)
	if err != nil {
		return err
	}

	c.lastWrite.Store(time.Now().UnixNano())
	c.metrics.PacketSent(msg.packetType, n, time.Since(start))
	c.logger.Debug("packet sent", LogFields{
		LogFieldPacketType: msg.packetType.String(),
		LogFieldBytes:      n,
	})

	return nil
}

// dialerFor picks the dialer for the address and the target it expects.
func (o *connectionOptions) dialerFor(address string) (Dialer, string, error) {
	if o.dialer != nil {
		return o.dialer, address, nil
	}

	addr, err := parseAddress(address)
	if err != nil {
		return nil, "", err
	}

	var proxyDialer *ProxyDialer
	if o.proxyURL != "" && addr.scheme != "unix" {
		proxyDialer, err = NewProxyDialer(o.proxyURL, "", "")
		if err != nil {
			return nil, "", err
		}
	}

	switch addr.scheme {
	case "ws":
		dialer := NewWSDialer()
		if proxyDialer != nil {
			dialer.Dialer.NetDialContext = proxyDialer.DialContext
		}
		return dialer, addr.target, nil
	case "unix":
		return NewUnixDialer(), addr.target, nil
	default:
		if proxyDialer != nil {
			return proxyDialer, addr.target, nil
		}
		return &TCPDialer{}, addr.target, nil
	}
}
