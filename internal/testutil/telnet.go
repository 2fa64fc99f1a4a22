package testutil

import (
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

// TelnetClient is a line-oriented test client for the telnet frontend.
// Output read past a match is retained for the next ReadUntil.
type TelnetClient struct {
	conn    net.Conn
	pending string
	t       testing.TB
}

// NewTelnetClient dials the given address and returns a test client.
//
// Precondition: addr must be a valid "host:port" string with a listening server.
// Postcondition: Returns a connected TelnetClient or fails the test.
func NewTelnetClient(t testing.TB, addr string) *TelnetClient {
	t.Helper()
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		t.Fatalf("connecting to %s: %v", addr, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return &TelnetClient{conn: conn, t: t}
}

// ReadUntil reads until substr appears and returns everything up to and
// including the match.
//
// Precondition: substr must be non-empty.
// Postcondition: Returns the output ending in substr, or fails on timeout.
func (c *TelnetClient) ReadUntil(substr string, timeout time.Duration) string {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	buf := c.pending
	tmp := make([]byte, 1024)
	for {
		if i := strings.Index(buf, substr); i >= 0 {
			end := i + len(substr)
			c.pending = buf[end:]
			return buf[:end]
		}
		n, err := c.conn.Read(tmp)
		if n > 0 {
			buf += stripTelnetIAC(tmp[:n])
		}
		if err != nil {
			c.pending = buf
			c.t.Fatalf("reading until %q: got %q, error: %v", substr, buf, err)
		}
	}
}

// ReadUntilAny reads until any of substrs appears and returns the output up
// to the earliest match together with the substring that matched.
//
// Precondition: substrs must be non-empty and contain no empty string.
// Postcondition: Returns the output and match, or fails on timeout.
func (c *TelnetClient) ReadUntilAny(timeout time.Duration, substrs ...string) (string, string) {
	c.t.Helper()
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))

	buf := c.pending
	tmp := make([]byte, 1024)
	for {
		best, match := -1, ""
		for _, sub := range substrs {
			if i := strings.Index(buf, sub); i >= 0 && (best < 0 || i < best) {
				best, match = i, sub
			}
		}
		if best >= 0 {
			end := best + len(match)
			c.pending = buf[end:]
			return buf[:end], match
		}
		n, err := c.conn.Read(tmp)
		if n > 0 {
			buf += stripTelnetIAC(tmp[:n])
		}
		if err != nil {
			c.pending = buf
			c.t.Fatalf("reading until any of %q: got %q, error: %v", substrs, buf, err)
		}
	}
}

// Send writes a line of text to the server, appending \r\n.
func (c *TelnetClient) Send(text string) {
	c.t.Helper()
	_ = c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	if _, err := fmt.Fprintf(c.conn, "%s\r\n", text); err != nil {
		c.t.Fatalf("sending %q: %v", text, err)
	}
}

// Exchange sends text and reads until substr.
func (c *TelnetClient) Exchange(text, substr string, timeout time.Duration) string {
	c.t.Helper()
	c.Send(text)
	return c.ReadUntil(substr, timeout)
}

// Close closes the underlying connection.
func (c *TelnetClient) Close() {
	_ = c.conn.Close()
}

// stripTelnetIAC drops three-byte IAC negotiation sequences from raw.
func stripTelnetIAC(raw []byte) string {
	var b strings.Builder
	for i := 0; i < len(raw); i++ {
		if raw[i] == 255 && i+2 < len(raw) {
			i += 2
			continue
		}
		b.WriteByte(raw[i])
	}
	return b.String()
}
