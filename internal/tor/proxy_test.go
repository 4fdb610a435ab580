package tor

import (
	"errors"
	"io"
	"net"
	"testing"
)

// serveOnce accepts one connection and hands it to handle.
func serveOnce(t *testing.T, handle func(net.Conn)) string {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		handle(conn)
	}()
	return ln.Addr().String()
}

// fakeSOCKS5 answers the no-auth handshake and replies to CONNECT with rep.
func fakeSOCKS5(rep byte) func(net.Conn) {
	return func(conn net.Conn) {
		greeting := make([]byte, 3)
		if _, err := io.ReadFull(conn, greeting); err != nil {
			return
		}
		if _, err := conn.Write([]byte{0x05, 0x00}); err != nil {
			return
		}
		header := make([]byte, 5)
		if _, err := io.ReadFull(conn, header); err != nil {
			return
		}
		rest := make([]byte, int(header[4])+2)
		if _, err := io.ReadFull(conn, rest); err != nil {
			return
		}
		_, _ = conn.Write([]byte{0x05, rep, 0x00, 0x01, 0, 0, 0, 0, 0, 0})
	}
}

func TestCheckProxy(t *testing.T) {
	t.Parallel()

	t.Run("working proxy", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, fakeSOCKS5(0x00))
		if got := CheckProxy(t.Context(), addr); got != ProxyStatusOK {
			t.Errorf("expected OK, got %v", got)
		}
	})

	t.Run("connect failure reply still counts as SOCKS5", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, fakeSOCKS5(0x04))
		if got := CheckProxy(t.Context(), addr); got != ProxyStatusOK {
			t.Errorf("expected OK, got %v", got)
		}
	})

	t.Run("not a SOCKS5 server", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			_, _ = conn.Write([]byte("HTTP/1.1 400 Bad Request\r\n\r\n"))
		})
		if got := CheckProxy(t.Context(), addr); got != ProxyStatusWrongType {
			t.Errorf("expected wrong type, got %v", got)
		}
	})

	t.Run("authentication required", func(t *testing.T) {
		t.Parallel()

		addr := serveOnce(t, func(conn net.Conn) {
			greeting := make([]byte, 3)
			if _, err := io.ReadFull(conn, greeting); err != nil {
				return
			}
			_, _ = conn.Write([]byte{0x05, 0xFF})
		})
		if got := CheckProxy(t.Context(), addr); got != ProxyStatusWrongType {
			t.Errorf("expected wrong type, got %v", got)
		}
	})

	t.Run("nothing listening", func(t *testing.T) {
		t.Parallel()

		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			t.Fatalf("failed to listen: %v", err)
		}
		addr := ln.Addr().String()
		ln.Close()

		if got := CheckProxy(t.Context(), addr); got != ProxyStatusCannotConnect {
			t.Errorf("expected cannot connect, got %v", got)
		}
	})
}

func TestValidateProxyAddress(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		address string
		valid   bool
	}{
		{address: "127.0.0.1:9050", valid: true},
		{address: "localhost:9150", valid: true},
		{address: "[::1]:9050", valid: true},
		{address: "127.0.0.1", valid: false},
		{address: ":9050", valid: false},
		{address: "127.0.0.1:0", valid: false},
		{address: "127.0.0.1:65536", valid: false},
		{address: "127.0.0.1:tor", valid: false},
	}

	for _, tc := range testCases {
		t.Run(tc.address, func(t *testing.T) {
			t.Parallel()

			err := ValidateProxyAddress(tc.address)
			if tc.valid && err != nil {
				t.Errorf("expected valid, got %v", err)
			}
			if !tc.valid && !errors.Is(err, ErrInvalidProxyAddress) {
				t.Errorf("expected ErrInvalidProxyAddress, got %v", err)
			}
		})
	}
}

func TestProxyStatus(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		status  ProxyStatus
		text    string
		wantErr error
	}{
		{status: ProxyStatusOK, text: "OK"},
		{status: ProxyStatusWrongType, text: "wrong type (not SOCKS5)", wantErr: ErrProxyNotSOCKS5},
		{status: ProxyStatusCannotConnect, text: "cannot connect", wantErr: ErrProxyCannotConnect},
		{status: ProxyStatusTimeout, text: "timeout", wantErr: ErrProxyTimeout},
	}

	for _, tc := range testCases {
		t.Run(tc.text, func(t *testing.T) {
			t.Parallel()

			if got := tc.status.String(); got != tc.text {
				t.Errorf("expected %q, got %q", tc.text, got)
			}
			if err := tc.status.Err(); !errors.Is(err, tc.wantErr) {
				t.Errorf("expected %v, got %v", tc.wantErr, err)
			}
		})
	}

	if got := ProxyStatus(99).String(); got != "unknown" {
		t.Errorf("expected unknown, got %q", got)
	}
	if ProxyStatus(99).Err() == nil {
		t.Error("expected an error for an unknown status")
	}
}
