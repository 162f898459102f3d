// Package mqtt311 provides a minimal MQTT 3.1.1 client: a packet codec, a
// frame reader and a full duplex connection runtime.
//
// This package implements the client side of the MQTT Version 3.1.1 OASIS
// Standard: https://docs.oasis-open.org/mqtt/mqtt/v3.1.1/mqtt-v3.1.1.html
//
// # Packets
//
// Outgoing packets are encoded, incoming ones decoded:
//
//   - ConnectPacket: session establishment (encode)
//   - ConnackPacket: handshake reply (decode, encode for test peers)
//   - SubscribePacket, SubackPacket: topic subscription
//   - PublishPacket: application messages delivered by the broker
//   - PingreqPacket, PingrespPacket: keep-alive
//   - DisconnectPacket: graceful close
//   - UnknownPacket: any other type, kept byte for byte
//
// The remaining length of every packet is a variable length integer of at
// most four bytes (EncodeVarint, DecodeVarint).
//
// Use ReadPacket and WritePacket for synchronous I/O:
//
//	pkt, n, err := mqtt311.ReadPacket(conn, maxPacketSize)
//	n, err := mqtt311.WritePacket(conn, packet)
//
// ReadFrame and FrameReader split a stream into frames without decoding
// them and never read past the current frame.
//
// # Connection
//
// Connection runs a reader and a writer goroutine over one transport:
//
//	conn, err := mqtt311.Dial(ctx, "mqtt://localhost:1883",
//	    mqtt311.WithSendQueueSize(128),
//	    mqtt311.WithLogger(mqtt311.NewSlogLogger(nil, mqtt311.LogLevelInfo)),
//	)
//	defer conn.Close()
//
//	err = conn.Send(packet)            // waits while the queue is full
//	err = conn.TrySend(packet)         // ErrSendQueueFull instead of waiting
//	pkt, err := conn.Receive(ctx)      // terminal error once closed
//
// Addresses may be host:port, tcp:// or mqtt:// (TCP), ws:// (WebSocket)
// or unix:// (Unix domain socket). WithProxy tunnels TCP and WebSocket
// through an HTTP CONNECT or SOCKS5 proxy. WithDialer accepts any Dialer.
//
// # Session
//
// Session adds the MQTT handshake on top of a Connection:
//
//	s, err := mqtt311.Connect(ctx, "localhost:1883",
//	    mqtt311.WithClientID("sensor01"),
//	    mqtt311.WithCredentials("user", "secret"),
//	    mqtt311.WithKeepAlive(30),
//	)
//	if err != nil {
//	    var connErr *mqtt311.ConnectError
//	    if errors.As(err, &connErr) { ... }
//	}
//	defer s.Close()
//
//	_, err = s.Subscribe(ctx, "sensors/#")
//
// With a non-zero keep-alive the session sends PINGREQ when the connection
// has been idle for half the interval, and closes it with
// ErrKeepAliveTimeout when the broker stays silent for 1.5 intervals after
// a PINGREQ.
//
// # Topics
//
// ValidateTopicFilter checks a filter before subscribing and TopicMatch
// reports whether a received topic matches it. The extensions/router
// package dispatches received PUBLISH packets by filter.
//
// # Configuration
//
// Programs can describe a session in YAML and load it with LoadConfigFile;
// Config.SessionOptions returns the matching options.
//
// # Metrics
//
// Connections record packet and byte counters through the Metrics
// interface. MemoryMetrics keeps them in memory:
//
//	metrics := mqtt311.NewMemoryMetrics()
//	conn, err := mqtt311.Dial(ctx, addr, mqtt311.WithMetrics(metrics))
//
// # Logging
//
// Implement the Logger interface for structured logging, or use StdLogger
// or SlogLogger:
//
//	logger := mqtt311.NewStdLogger(os.Stdout, mqtt311.LogLevelInfo)
//	logger.Info("connected", mqtt311.LogFields{mqtt311.LogFieldClientID: "sensor01"})
package mqtt311
