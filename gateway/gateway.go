// Package gateway accepts bridge connections speaking the binary wire
// protocol and feeds every decoded frame to the engine service.
package gateway

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"titan/infra/metrics"
	"titan/service"
	"titan/wire"
)

type Gateway struct {
	addr    string
	svc     *service.EngineService
	log     *zap.Logger
	metrics *metrics.Set

	ln      net.Listener
	running atomic.Bool
	wg      sync.WaitGroup
}

func New(addr string, svc *service.EngineService, log *zap.Logger, m *metrics.Set) *Gateway {
	return &Gateway{addr: addr, svc: svc, log: log, metrics: m}
}

// Start binds the listener and serves connections until Stop.
func (g *Gateway) Start() error {
	if !g.running.CompareAndSwap(false, true) {
		return errors.New("gateway: already running")
	}
	ln, err := net.Listen("tcp", g.addr)
	if err != nil {
		g.running.Store(false)
		return err
	}
	g.ln = ln
	g.log.Info("gateway listening", zap.String("addr", g.addr))

	g.wg.Add(1)
	go g.acceptLoop()
	return nil
}

// Stop closes the listener and waits for connection handlers.
func (g *Gateway) Stop() {
	if !g.running.CompareAndSwap(true, false) {
		return
	}
	_ = g.ln.Close()
	g.wg.Wait()
	g.log.Info("gateway stopped")
}

func (g *Gateway) acceptLoop() {
	defer g.wg.Done()
	for {
		conn, err := g.ln.Accept()
		if err != nil {
			if g.running.Load() {
				g.log.Warn("accept failed", zap.Error(err))
				continue
			}
			return
		}
		if tc, ok := conn.(*net.TCPConn); ok {
			_ = tc.SetNoDelay(true)
		}
		g.wg.Add(1)
		go func() {
			defer g.wg.Done()
			g.handleConn(conn)
		}()
	}
}

// handleConn runs the framing loop: read the 11-byte header, validate
// the declared length, read the body, dispatch. A malformed length is
// unrecoverable within the stream, so the connection is dropped.
func (g *Gateway) handleConn(conn net.Conn) {
	defer conn.Close()
	remote := conn.RemoteAddr().String()
	g.log.Info("bridge connected", zap.String("remote", remote))

	buf := make([]byte, wire.MaxMessageSize)
	var processed uint64

	for g.running.Load() {
		if _, err := io.ReadFull(conn, buf[:wire.HeaderSize]); err != nil {
			if err != io.EOF {
				g.log.Warn("read failed", zap.String("remote", remote), zap.Error(err))
			}
			break
		}
		h, err := wire.PeekHeader(buf[:wire.HeaderSize])
		if err != nil {
			break
		}
		if int(h.Length) < wire.HeaderSize || int(h.Length) > wire.MaxMessageSize {
			g.log.Error("invalid message length, dropping connection",
				zap.String("remote", remote), zap.Uint16("length", h.Length))
			g.metrics.FramesRejected.Inc()
			break
		}
		body := int(h.Length) - wire.HeaderSize
		if body > 0 {
			if _, err := io.ReadFull(conn, buf[wire.HeaderSize:h.Length]); err != nil {
				g.log.Warn("short body read", zap.String("remote", remote), zap.Error(err))
				break
			}
		}

		if err := g.svc.Dispatch(buf[:h.Length]); err != nil {
			g.metrics.FramesRejected.Inc()
			g.log.Warn("frame rejected", zap.String("remote", remote), zap.Error(err))
			continue
		}
		processed++
		g.metrics.MessagesIn.Inc()
	}

	g.log.Info("bridge disconnected",
		zap.String("remote", remote), zap.Uint64("messages", processed))
}

// Addr reports the bound address, useful when listening on port 0.
func (g *Gateway) Addr() string {
	if g.ln == nil {
		return g.addr
	}
	return g.ln.Addr().String()
}
