// Package receiver implements the Receiver pool of spec.md §4.4: a bound
// listener and a target number of worker goroutines, each looping
// accept -> parse -> dispatch over its own connection, handing every
// CONT/SEND/PAKG/VRFY it reads to the Coordinator and writing incoming file
// data through a FileWriter. Grounded on fileSocket.py's
// recvSocket/_recvThread.
package receiver

import (
	"context"
	"errors"
	"io"
	"net"
	"path/filepath"
	"sync"

	"github.com/peerdrop/peerdrop/internal/filewriter"
	"github.com/peerdrop/peerdrop/internal/logger"
	"github.com/peerdrop/peerdrop/internal/metrics"
	"github.com/peerdrop/peerdrop/internal/wire"
)

var l = logger.DefaultLogger

// Handler is the Coordinator's intake surface the Receiver pool drives.
type Handler interface {
	RecvCont(sockNum uint32, isEcho bool)
	RecvSend(path string, blockCount uint32)
	RecvVrfy(path string, blockIndex uint32)
}

// Pool is the Receiver pool: one bound listener, and a target number of
// goroutines each running their own accept loop (net.Listener.Accept is
// safe for concurrent callers).
type Pool struct {
	Addr    string
	Root    string
	Handler Handler
	Metrics *metrics.Metrics

	mu     sync.Mutex
	wanted int
	wake   chan struct{}

	ln      net.Listener
	lnReady chan struct{}
}

// New constructs a Pool that binds addr (once Serve runs) and writes
// received files under root.
func New(addr, root string, handler Handler, m *metrics.Metrics) *Pool {
	return &Pool{
		Addr:    addr,
		Root:    root,
		Handler: handler,
		Metrics: m,
		wanted:  1,
		wake:    make(chan struct{}, 1),
		lnReady: make(chan struct{}),
	}
}

// Grow sets the pool's target accept-loop worker count, idempotent per
// §9.3's resolution.
func (p *Pool) Grow(n int) {
	p.mu.Lock()
	if n > p.wanted {
		p.wanted = n
	}
	p.mu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// BoundAddr blocks until the listener is bound and returns its address.
// Used by callers (and tests) that need to know the actual port when Addr
// uses an ephemeral ":0".
func (p *Pool) BoundAddr() net.Addr {
	<-p.lnReady
	return p.ln.Addr()
}

// Serve binds Addr and runs accept-loop workers until ctx is canceled. It
// implements suture.Service.
func (p *Pool) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", p.Addr)
	if err != nil {
		return err
	}
	p.ln = ln
	close(p.lnReady)
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	running := 0
	var wg sync.WaitGroup
	for {
		p.mu.Lock()
		want := p.wanted
		p.mu.Unlock()
		for running < want {
			running++
			wg.Add(1)
			go func() {
				defer wg.Done()
				p.acceptLoop(ctx)
			}()
		}
		if p.Metrics != nil {
			p.Metrics.ReceiverWorkers.Set(float64(running))
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-p.wake:
		}
	}
}

func (p *Pool) acceptLoop(ctx context.Context) {
	for {
		conn, err := p.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			l.Warnf("receiver: accept: %v", err)
			return
		}
		p.handleConn(conn)
	}
}

// handleConn services one connection end to end: a connection carries
// either a single CONT, or one SEND followed by zero or more PAKG and a
// closing VRFY, per spec.md §4.1's "each block its own connection" framing.
func (p *Pool) handleConn(conn net.Conn) {
	defer conn.Close()

	var (
		fw         *filewriter.Writer
		path       string
		blockIndex uint32
	)

	protocolErr := func(err error) {
		l.Warnf("receiver: %v", err)
		if p.Metrics != nil {
			p.Metrics.ProtocolViolations.Inc()
		}
		if fw != nil {
			fw.Abort()
		}
	}

	for {
		payload, err := wire.ReadFrame(conn)
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			protocolErr(err)
			return
		}

		msg, err := wire.DecodeMessage(payload)
		if err != nil {
			protocolErr(err)
			return
		}

		switch {
		case msg.Cont != nil:
			p.Handler.RecvCont(msg.Cont.SockNum, msg.Cont.IsEcho)

		case msg.Send != nil:
			path = msg.Send.Path
			blockIndex = msg.Send.BlockIndex
			p.Handler.RecvSend(path, msg.Send.BlockCount)
			w, err := filewriter.New(filepath.Join(p.Root, path), int64(msg.Send.FileSize))
			if err != nil {
				l.Warnf("receiver: open %s: %v", path, err)
				return
			}
			fw = w

		case msg.Pakg != nil:
			if fw == nil {
				protocolErr(errors.New("receiver: PAKG with no preceding SEND on this connection"))
				return
			}
			if err := fw.WriteAt(int64(msg.Pakg.Position), msg.Pakg.Data); err != nil {
				l.Warnf("receiver: write %s: %v", path, err)
				fw.Abort()
				return
			}
			if p.Metrics != nil {
				p.Metrics.BytesReceived.Add(float64(len(msg.Pakg.Data)))
			}

		case msg.Vrfy != nil:
			if fw != nil {
				if err := fw.Close(); err != nil {
					l.Warnf("receiver: close %s: %v", path, err)
				}
			}
			p.Handler.RecvVrfy(path, blockIndex)
			return
		}
	}
}
