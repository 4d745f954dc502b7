package nearby

import (
	"net"
	"strconv"
	"time"
)

// listenPreferredPort tries each port in ports in order, returning the
// first successful listener. A port of 0 always succeeds with an
// OS-assigned ephemeral port, so callers should put 0 last.
func listenPreferredPort(ports []int) (net.Listener, error) {
	var lastErr error
	for _, port := range ports {
		listener, err := net.Listen("tcp", net.JoinHostPort("", strconv.Itoa(port)))
		if err == nil {
			return listener, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// boundPort extracts the bound TCP port from a listener's Addr.
func boundPort(listener net.Listener) uint32 {
	addr, ok := listener.Addr().(*net.TCPAddr)
	if !ok {
		return 0
	}
	return uint32(addr.Port)
}

// deadlineConn wraps a net.Conn and refreshes its read/write deadline
// before every Read/Write, turning Config's ReadTimeout/WriteTimeout into
// a per-call timeout instead of an absolute one. A zero duration leaves
// the corresponding deadline untouched.
type deadlineConn struct {
	net.Conn
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.readTimeout > 0 {
		c.Conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.writeTimeout > 0 {
		c.Conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}
	return c.Conn.Write(p)
}

// localIPv4 enumerates local non-loopback interface addresses and returns
// the first IPv4 found, or "" if none exists. This is the Go-idiomatic
// equivalent of local_ip_address::local_ip() in the original source: it
// lets Start auto-fill the advertised hostname when the caller hasn't
// called SetTcpDetails themselves.
func localIPv4() string {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return ""
	}
	for _, addr := range addrs {
		ipNet, ok := addr.(*net.IPNet)
		if !ok || ipNet.IP.IsLoopback() {
			continue
		}
		ipv4 := ipNet.IP.To4()
		if ipv4 == nil {
			continue
		}
		return ipv4.String()
	}
	return ""
}
