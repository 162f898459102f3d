package mqtt311

import (
	"bufio"
	"context"
	"encoding/base64"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

// Default proxy ports when the proxy URL has none.
const (
	defaultHTTPProxyPort  = "8080"
	defaultSOCKSProxyPort = "1080"
)

// ProxyDialer tunnels TCP broker connections through an HTTP CONNECT or
// SOCKS5 proxy.
type ProxyDialer struct {
	// proxyURL carries the effective credentials as user info.
	proxyURL *url.URL
	tunnel   proxy.ContextDialer
}

// NewProxyDialer creates a dialer for proxyURL. Supported schemes are
// http (CONNECT), socks5 and socks5h. Credentials passed here take
// precedence over user info in the URL.
func NewProxyDialer(proxyURL, username, password string) (*ProxyDialer, error) {
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}

	if username != "" {
		u.User = url.UserPassword(username, password)
	}

	forward := &net.Dialer{}

	var tunnel proxy.ContextDialer
	switch u.Scheme {
	case "http":
		tunnel = &httpConnectDialer{
			proxyAddr: hostWithDefaultPort(u, defaultHTTPProxyPort),
			auth:      basicProxyAuth(u.User),
			forward:   forward,
		}
	case "socks5", "socks5h":
		socksURL := *u
		socksURL.Host = hostWithDefaultPort(u, defaultSOCKSProxyPort)

		d, err := proxy.FromURL(&socksURL, forward)
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy: %w", err)
		}

		var ok bool
		if tunnel, ok = d.(proxy.ContextDialer); !ok {
			return nil, fmt.Errorf("socks5 proxy: dialer %T does not accept a context", d)
		}
	default:
		return nil, fmt.Errorf("%w: proxy %s", ErrUnsupportedScheme, u.Scheme)
	}

	return &ProxyDialer{proxyURL: u, tunnel: tunnel}, nil
}

func hostWithDefaultPort(u *url.URL, port string) string {
	if u.Port() != "" {
		return u.Host
	}
	return net.JoinHostPort(u.Hostname(), port)
}

func basicProxyAuth(user *url.Userinfo) string {
	if user == nil || user.Username() == "" {
		return ""
	}
	password, _ := user.Password()
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user.Username()+":"+password))
}

// Dial connects to the broker host:port through the proxy.
func (d *ProxyDialer) Dial(ctx context.Context, address string) (Conn, error) {
	return d.DialContext(ctx, "tcp", address)
}

// DialContext connects to addr through the proxy. It has the signature of
// net.Dialer.DialContext so WebSocket handshakes can use it.
func (d *ProxyDialer) DialContext(ctx context.Context, network, addr string) (net.Conn, error) {
	conn, err := d.tunnel.DialContext(ctx, network, addr)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", d.proxyURL.Redacted(), err)
	}
	return conn, nil
}

// httpConnectDialer opens tunnels with the HTTP CONNECT method.
type httpConnectDialer struct {
	proxyAddr string
	auth      string
	forward   *net.Dialer
}

func (d *httpConnectDialer) DialContext(ctx context.Context, _, addr string) (net.Conn, error) {
	conn, err := d.forward.DialContext(ctx, "tcp", d.proxyAddr)
	if err != nil {
		return nil, err
	}

	// A cancelled ctx breaks the handshake by expiring the deadline.
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(time.Unix(1, 0))
	})

	tunnel, err := d.handshake(conn, addr)
	if !stop() {
		err = ctx.Err()
	}
	if err != nil {
		conn.Close()
		return nil, err
	}

	return tunnel, nil
}

func (d *httpConnectDialer) handshake(conn net.Conn, addr string) (net.Conn, error) {
	req := &http.Request{
		Method: http.MethodConnect,
		URL:    &url.URL{Opaque: addr},
		Host:   addr,
		Header: make(http.Header),
	}
	if d.auth != "" {
		req.Header.Set("Proxy-Authorization", d.auth)
	}

	if err := req.Write(conn); err != nil {
		return nil, fmt.Errorf("send CONNECT: %w", err)
	}

	br := bufio.NewReader(conn)
	resp, err := http.ReadResponse(br, req)
	if err != nil {
		return nil, fmt.Errorf("read CONNECT response: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("CONNECT %s: %s", addr, resp.Status)
	}

	// Bytes the broker sent right behind the response are already buffered.
	if br.Buffered() > 0 {
		return &bufferedConn{Conn: conn, r: br}, nil
	}
	return conn, nil
}

// bufferedConn reads through the reader that parsed the CONNECT response.
type bufferedConn struct {
	net.Conn
	r *bufio.Reader
}

func (c *bufferedConn) Read(p []byte) (int, error) {
	return c.r.Read(p)
}
