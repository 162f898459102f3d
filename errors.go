package mqtt311

import (
	"errors"
)

// Sentinel errors for the connection lifecycle - check with errors.Is().
var (
	// ErrConnectionClosed is returned by operations on a closed connection.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrConnectionLost is the base of the terminal error when the transport
	// fails or the peer closes the stream.
	ErrConnectionLost = errors.New("connection lost")

	// ErrSendQueueFull is returned by TrySend when the outbound queue is at capacity.
	ErrSendQueueFull = errors.New("send queue full")

	// ErrKeepAliveTimeout is the cause of the connection loss when the
	// broker does not answer a PINGREQ in time.
	ErrKeepAliveTimeout = errors.New("keep-alive timeout")
)

// Sentinel errors for the session handshake - check with errors.Is().
var (
	// ErrConnectRefused is returned when the broker answers CONNECT with a
	// non-zero return code.
	ErrConnectRefused = errors.New("connect refused")

	// ErrAuthFailed is returned when the broker rejects the credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrSubscribeFailed is returned when the broker refuses a subscription.
	ErrSubscribeFailed = errors.New("subscribe failed")

	// ErrUnexpectedPacket is returned when the broker answers with the wrong packet type.
	ErrUnexpectedPacket = errors.New("unexpected packet")
)

// ConnectionLostError carries the cause of an unexpected connection loss.
// Extract with errors.As().
type ConnectionLostError struct {
	err   error
	Cause error
}

func (e *ConnectionLostError) Error() string {
	if e.Cause != nil {
		return "connection lost: " + e.Cause.Error()
	}
	return "connection lost"
}

// Unwrap exposes both ErrConnectionLost and the cause to errors.Is.
func (e *ConnectionLostError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.err}
	}
	return []error{e.err, e.Cause}
}

// NewConnectionLostError creates a new ConnectionLostError.
func NewConnectionLostError(cause error) *ConnectionLostError {
	return &ConnectionLostError{
		err:   ErrConnectionLost,
		Cause: cause,
	}
}

// ConnectError contains the return code of a refused connection.
// Extract with errors.As(). It matches ErrConnectRefused, and also
// ErrAuthFailed for bad credentials or a missing authorization.
type ConnectError struct {
	ReturnCode ConnackReturnCode
}

func (e *ConnectError) Error() string {
	return "connect refused: " + e.ReturnCode.String()
}

func (e *ConnectError) Unwrap() []error {
	if e.ReturnCode == ConnackBadCredentials || e.ReturnCode == ConnackNotAuthorized {
		return []error{ErrConnectRefused, ErrAuthFailed}
	}
	return []error{ErrConnectRefused}
}

// NewConnectError creates a new ConnectError from a CONNACK return code.
func NewConnectError(code ConnackReturnCode) *ConnectError {
	return &ConnectError{ReturnCode: code}
}

// SubscribeError contains details about a refused subscription.
// Extract with errors.As().
type SubscribeError struct {
	err        error
	Topic      string
	ReturnCode SubackReturnCode
}

func (e *SubscribeError) Error() string {
	return "subscribe failed: " + e.Topic + ": " + e.ReturnCode.String()
}

func (e *SubscribeError) Unwrap() error { return e.err }

// NewSubscribeError creates a new SubscribeError.
func NewSubscribeError(topic string, code SubackReturnCode) *SubscribeError {
	return &SubscribeError{
		err:        ErrSubscribeFailed,
		Topic:      topic,
		ReturnCode: code,
	}
}
