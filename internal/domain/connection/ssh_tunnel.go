package connection

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// TunnelConfig describes the SSH hop used to reach an engine that is not
// directly routable from the benchmark host.
type TunnelConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
	KeyPath  string `json:"key_path,omitempty"`

	// LocalPort is the local binding port; zero auto-assigns.
	LocalPort int `json:"local_port"`
}

// Validate validates the tunnel configuration.
func (c *TunnelConfig) Validate() error {
	if err := validateRequired("ssh host", c.Host); err != nil {
		return err
	}
	if err := validateRequired("ssh username", c.Username); err != nil {
		return err
	}
	if err := ValidatePort(c.Port); err != nil {
		return err
	}
	if c.Password == "" && c.KeyPath == "" {
		return fmt.Errorf("ssh tunnel requires either a password or a private key")
	}
	return nil
}

// Tunnel forwards a local TCP port to a remote engine endpoint over SSH.
type Tunnel struct {
	client    *ssh.Client
	listener  net.Listener
	localPort int
	cancel    context.CancelFunc

	mu     sync.Mutex
	closed bool
}

// OpenTunnel establishes the SSH connection and starts forwarding the local
// port to remoteHost:remotePort. The caller owns the tunnel and must Close it.
func OpenTunnel(ctx context.Context, cfg *TunnelConfig, remoteHost string, remotePort int) (*Tunnel, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sshCfg, err := cfg.clientConfig()
	if err != nil {
		return nil, err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(30 * time.Second)
	}

	tcpConn, err := net.DialTimeout("tcp", addr, time.Until(deadline))
	if err != nil {
		return nil, fmt.Errorf("dial ssh server %s: %w", addr, err)
	}

	sshConn, chans, reqs, err := ssh.NewClientConn(tcpConn, addr, sshCfg)
	if err != nil {
		tcpConn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.LocalPort))
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("listen on local tunnel port: %w", err)
	}

	t := &Tunnel{
		client:    client,
		listener:  listener,
		localPort: listener.Addr().(*net.TCPAddr).Port,
	}
	t.startForwarding(remoteHost, remotePort)

	slog.Info("SSH: tunnel established",
		"ssh_host", cfg.Host,
		"local_port", t.localPort,
		"remote_target", fmt.Sprintf("%s:%d", remoteHost, remotePort))

	return t, nil
}

// LocalPort returns the local port the tunnel listens on.
func (t *Tunnel) LocalPort() int {
	return t.localPort
}

// Close tears the tunnel down. Safe to call multiple times.
func (t *Tunnel) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true

	if t.cancel != nil {
		t.cancel()
	}
	t.listener.Close()
	return t.client.Close()
}

func (c *TunnelConfig) clientConfig() (*ssh.ClientConfig, error) {
	cfg := &ssh.ClientConfig{
		User:            c.Username,
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         30 * time.Second,
	}

	if c.Password != "" {
		cfg.Auth = append(cfg.Auth, ssh.Password(c.Password))
	}
	if c.KeyPath != "" {
		keyData, err := os.ReadFile(c.KeyPath)
		if err != nil {
			return nil, fmt.Errorf("read ssh key %s: %w", c.KeyPath, err)
		}
		key, err := ssh.ParsePrivateKey(keyData)
		if err != nil {
			return nil, fmt.Errorf("parse ssh key %s: %w", c.KeyPath, err)
		}
		cfg.Auth = append(cfg.Auth, ssh.PublicKeys(key))
	}

	return cfg, nil
}

func (t *Tunnel) startForwarding(remoteHost string, remotePort int) {
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel

	go func() {
		for {
			conn, err := t.listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
				default:
					t.mu.Lock()
					closed := t.closed
					t.mu.Unlock()
					if !closed {
						slog.Error("SSH: accept on tunnel listener failed", "error", err)
					}
				}
				return
			}
			go t.forward(conn, remoteHost, remotePort)
		}
	}()
}

func (t *Tunnel) forward(localConn net.Conn, remoteHost string, remotePort int) {
	defer localConn.Close()

	remoteConn, err := t.client.Dial("tcp", fmt.Sprintf("%s:%d", remoteHost, remotePort))
	if err != nil {
		slog.Error("SSH: dial remote target failed",
			"remote_host", remoteHost, "remote_port", remotePort, "error", err)
		return
	}
	defer remoteConn.Close()

	done := make(chan struct{}, 2)
	go func() {
		io.Copy(remoteConn, localConn)
		done <- struct{}{}
	}()
	go func() {
		io.Copy(localConn, remoteConn)
		done <- struct{}{}
	}()
	<-done
}
