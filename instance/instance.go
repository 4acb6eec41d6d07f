// Package instance keeps a single copy of the desktop client running. The
// first process listens on a loopback port; later ones ask it to show its
// window and exit.
package instance

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"askforge-client/utils"
)

// DefaultAddr is the loopback address the running instance listens on.
const DefaultAddr = "127.0.0.1:47291"

const showCommand = "show"

// ErrAlreadyRunning is returned by Acquire after another instance was told
// to come to the front.
var ErrAlreadyRunning = errors.New("another instance is already running")

// Guard is held by the running instance.
type Guard struct {
	ln     net.Listener
	logger *utils.Logger

	mu     sync.Mutex
	onShow func()
	closed bool
}

// Acquire claims addr. If another instance holds it, that instance is
// signalled and ErrAlreadyRunning is returned.
func Acquire(addr string, logger *utils.Logger) (*Guard, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		if signalErr := signal(addr); signalErr == nil {
			return nil, ErrAlreadyRunning
		}
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	g := &Guard{ln: ln, logger: logger}
	utils.SafeGo(logger, "instance guard", g.serve)
	return g, nil
}

// OnShow sets the callback run when a second instance starts. It is
// called from a background goroutine.
func (g *Guard) OnShow(fn func()) {
	g.mu.Lock()
	g.onShow = fn
	g.mu.Unlock()
}

// Addr returns the address actually bound.
func (g *Guard) Addr() string {
	return g.ln.Addr().String()
}

// Close releases the address.
func (g *Guard) Close() error {
	g.mu.Lock()
	g.closed = true
	g.mu.Unlock()
	return g.ln.Close()
}

func (g *Guard) serve() {
	for {
		conn, err := g.ln.Accept()
		if err != nil {
			g.mu.Lock()
			closed := g.closed
			g.mu.Unlock()
			if !closed {
				g.logger.Warn("Instance guard stopped: %v", err)
			}
			return
		}
		g.handle(conn)
	}
}

func (g *Guard) handle(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && line == "" {
		return
	}
	if strings.TrimSpace(line) != showCommand {
		g.logger.Debug("Instance guard ignored %q", line)
		return
	}
	fmt.Fprintln(conn, "ok")

	g.mu.Lock()
	fn := g.onShow
	g.mu.Unlock()
	if fn != nil {
		g.logger.Info("Second instance started; showing window")
		fn()
	}
}

// signal asks the instance at addr to show itself and waits for its reply,
// so an unrelated program on the port is not mistaken for us.
func signal(addr string) error {
	conn, err := net.DialTimeout("tcp", addr, time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * time.Second))

	if _, err := fmt.Fprintln(conn, showCommand); err != nil {
		return err
	}
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(reply) != "ok" {
		return fmt.Errorf("unexpected reply %q", reply)
	}
	return nil
}
