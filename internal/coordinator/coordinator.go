// Package coordinator implements the single-consumer command loop of
// spec.md §4.5: the only goroutine that inserts, completes and settles
// ReceiveRegistry entries (the Scanner only looks entries up and removes
// them), serializing CONT/SEND/VRFY arrivals from every receiver connection
// and SendFile requests from the Scanner against one ordered queue. Grounded on
// fileSocket.py's fileSocket class (recv_cont/recv_send/recv_vrfy/send_file,
// each itself just enqueuing a command tuple consumed by one worker thread).
package coordinator

import (
	"context"
	"path/filepath"

	"github.com/peerdrop/peerdrop/internal/fingerprint"
	"github.com/peerdrop/peerdrop/internal/logger"
	"github.com/peerdrop/peerdrop/internal/metrics"
	"github.com/peerdrop/peerdrop/internal/registry"
)

var l = logger.DefaultLogger

// Pool is the subset of a worker pool's surface the Coordinator drives.
// Grow sets the pool's target worker count; per §9.3's resolution this is
// idempotent (a lower or equal target is a no-op), fixing the "duplicate
// worker initiation on reconnect" bug fileSocket.py's recv_cont carries as
// a TODO.
type Pool interface {
	Grow(target int)
}

// Sender is the Sender pool's command intake.
type Sender interface {
	Pool
	SendCont(sockNum uint32, isEcho bool)
	SendFile(path string)
}

type command func()

// Coordinator is spec.md §4.5's bootstrapping and command-dispatch
// authority. It owns the ReceiveRegistry: every insert, block completion and
// settle goes through a closure enqueued on cmds and run, in order, by
// Serve. The Scanner's Registry.Remove calls do not pass through this queue.
type Coordinator struct {
	Root     string
	SockNum  uint32
	Registry *registry.Registry
	Sender   Sender
	Receiver Pool
	Provider fingerprint.Provider
	Metrics  *metrics.Metrics

	cmds chan command
}

// New constructs a Coordinator rooted at root (the share directory, used to
// resolve relative paths for post-receive fingerprinting). sockNum is this
// endpoint's own advertised worker count, echoed back on a non-echo CONT
// reply per spec.md's "reply by enqueuing SendCont(self.sock_num,
// is_echo=true)".
func New(root string, sockNum uint32, reg *registry.Registry, sender Sender, receiver Pool, m *metrics.Metrics) *Coordinator {
	return &Coordinator{
		Root:     root,
		SockNum:  sockNum,
		Registry: reg,
		Sender:   sender,
		Receiver: receiver,
		Provider: fingerprint.SHA256Provider{},
		Metrics:  m,
		cmds:     make(chan command, 64),
	}
}

// Serve drains the command queue until ctx is canceled. It implements
// suture.Service.
func (c *Coordinator) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-c.cmds:
			cmd()
		}
	}
}

func (c *Coordinator) enqueue(cmd command) {
	select {
	case c.cmds <- cmd:
	default:
		// The queue is a bounded buffer sized well above any realistic
		// burst (one CONT/SEND/VRFY per connection event); blocking here
		// rather than dropping preserves every command at the cost of
		// backpressure on the caller, same tradeoff fileSocket.py's
		// unbounded Queue makes implicitly.
		c.cmds <- cmd
	}
}

// RecvCont handles an incoming CONT: grow both pools to the peer's
// advertised worker count, and unless this is itself an echo of our own
// CONT, reply with our own sock_num (not the peer's) so the peer can size
// its pools to what we actually advertise.
func (c *Coordinator) RecvCont(sockNum uint32, isEcho bool) {
	c.enqueue(func() {
		c.Sender.Grow(int(sockNum))
		c.Receiver.Grow(int(sockNum))
		if !isEcho {
			c.Sender.SendCont(c.SockNum, true)
		}
	})
}

// RecvSend handles an incoming SEND: install the ReceiveRegistry entry for
// path (a no-op if one already exists, per spec.md §4.5's dedup rule).
// blockIndex is recorded by the caller (the receiver connection), not here;
// RecvVrfy reports it back when the matching VRFY arrives.
func (c *Coordinator) RecvSend(path string, blockCount uint32) {
	c.enqueue(func() {
		c.Registry.InsertSend(path, blockCount)
	})
}

// RecvVrfy handles an incoming VRFY for (path, blockIndex): mark that block
// complete, and once every block of path has checked in, fingerprint the
// finished file and settle it.
func (c *Coordinator) RecvVrfy(path string, blockIndex uint32) {
	c.enqueue(func() {
		if !c.Registry.CompleteBlock(path, blockIndex) {
			return
		}
		fp, err := c.Provider.Compute(filepath.Join(c.Root, path))
		if err != nil {
			l.Warnf("coordinator: fingerprint %s after receive: %v", path, err)
			fp = fingerprint.Zero
		}
		c.Registry.Settle(path, fp)
		if c.Metrics != nil {
			c.Metrics.FilesReceived.Inc()
		}
	})
}

// SendFile handles a change the Scanner detected locally: forward it to the
// Sender pool.
func (c *Coordinator) SendFile(path string) {
	c.enqueue(func() {
		c.Sender.SendFile(path)
	})
}
