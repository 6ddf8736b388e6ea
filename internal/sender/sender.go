// Package sender implements the Sender pool of spec.md §4.3: a public
// command queue (SendCont, SendFile) feeding an internal work queue of
// per-block jobs, drained by a target number of worker goroutines that each
// dial the peer, deliver one job, and redial on failure with bounded
// exponential backoff. Grounded on fileSocket.py's sendSocket/_sendThread
// and fileLoader.py's block/packet splitting.
package sender

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/peerdrop/peerdrop/internal/fileblocks"
	"github.com/peerdrop/peerdrop/internal/logger"
	"github.com/peerdrop/peerdrop/internal/metrics"
	"github.com/peerdrop/peerdrop/internal/wire"
)

var l = logger.DefaultLogger

type jobKind int

const (
	jobCont jobKind = iota
	jobBlock
)

type job struct {
	kind jobKind

	sockNum uint32
	isEcho  bool

	path       string
	blockIndex uint32
	blockCount uint32
	fileSize   int64
}

// Pool is the Sender worker pool.
type Pool struct {
	PeerAddr string
	Root     string
	Metrics  *metrics.Metrics

	jobs chan job

	mu     sync.Mutex
	wanted int
	wake   chan struct{}
}

// New constructs a Pool that dials peerAddr and reads files relative to
// root. Per spec.md's bootstrapping rule ("initialize init_sock_num (default
// 1) workers in each pool... before the initial handshake send"), wanted
// starts at 1 so the pool has a live worker ready to drain the initial CONT
// job before any peer CONT ever arrives to Grow it.
func New(peerAddr, root string, m *metrics.Metrics) *Pool {
	return &Pool{
		PeerAddr: peerAddr,
		Root:     root,
		Metrics:  m,
		jobs:     make(chan job, 256),
		wanted:   1,
		wake:     make(chan struct{}, 1),
	}
}

// Grow sets the pool's target worker count. Per §9.3's resolution this is
// idempotent: a target no higher than the current one is a no-op, fixing
// the duplicate-worker bug fileSocket.py's recv_cont carries as a TODO.
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

// SendCont enqueues a CONT handshake delivery.
func (p *Pool) SendCont(sockNum uint32, isEcho bool) {
	p.jobs <- job{kind: jobCont, sockNum: sockNum, isEcho: isEcho}
}

// SendFile enqueues every block of path (or, for a zero-byte file, the
// single minimal SEND+VRFY exchange §9.1 resolves empty files to) for
// delivery.
func (p *Pool) SendFile(path string) {
	full := filepath.Join(p.Root, path)
	info, err := os.Stat(full)
	if err != nil {
		l.Warnf("sender: stat %s: %v", path, err)
		return
	}
	fileSize := info.Size()
	blockCount := fileblocks.Count(fileSize)

	if p.Metrics != nil {
		p.Metrics.FilesSent.Inc()
	}

	if blockCount == 0 {
		p.jobs <- job{kind: jobBlock, path: path, blockIndex: 0, blockCount: 0, fileSize: 0}
		return
	}
	for i := uint32(0); i < blockCount; i++ {
		p.jobs <- job{kind: jobBlock, path: path, blockIndex: i, blockCount: blockCount, fileSize: fileSize}
	}
}

// Serve runs worker goroutines until ctx is canceled. It implements
// suture.Service.
func (p *Pool) Serve(ctx context.Context) error {
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
				p.work(ctx)
			}()
		}
		if p.Metrics != nil {
			p.Metrics.SenderWorkers.Set(float64(running))
		}
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil
		case <-p.wake:
		}
	}
}

func (p *Pool) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-p.jobs:
			p.deliver(ctx, j)
		}
	}
}

// deliver dials and delivers j, retrying with bounded exponential backoff
// (50ms -> 5s, factor 2, jitter) until it succeeds, ctx is canceled, or an
// attempt returns a backoff.Permanent error (a local file or encoding
// failure), which ends the retries for this job at once. This
// realizes spec.md §4.3's "retry indefinitely" instruction under the bound
// REDESIGN FLAGS §9 calls for, rather than retrying without a ceiling.
func (p *Pool) deliver(ctx context.Context, j job) {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 50 * time.Millisecond
	bo.MaxInterval = 5 * time.Second
	bo.Multiplier = 2
	bo.MaxElapsedTime = 0

	err := backoff.Retry(func() error {
		return p.attempt(j)
	}, backoff.WithContext(bo, ctx))
	if err != nil && ctx.Err() == nil {
		l.Warnf("sender: giving up delivering %s block %d: %v", j.path, j.blockIndex, err)
	}
}

func (p *Pool) attempt(j job) error {
	conn, err := net.DialTimeout("tcp", p.PeerAddr, 5*time.Second)
	if err != nil {
		return err
	}
	defer conn.Close()

	if j.kind == jobCont {
		return p.deliverCont(conn, j)
	}
	return p.deliverBlock(conn, j)
}

func (p *Pool) deliverCont(conn net.Conn, j job) error {
	payload, err := wire.Cont{SockNum: j.sockNum, IsEcho: j.isEcho}.Encode()
	if err != nil {
		return backoff.Permanent(err)
	}
	return wire.WriteFrame(conn, payload)
}

func (p *Pool) deliverBlock(conn net.Conn, j job) error {
	sendPayload, err := wire.Send{
		BlockIndex: j.blockIndex,
		Path:       j.path,
		BlockCount: j.blockCount,
		FileSize:   uint64(j.fileSize),
	}.Encode()
	if err != nil {
		return backoff.Permanent(err)
	}
	if err := wire.WriteFrame(conn, sendPayload); err != nil {
		return err
	}

	if j.blockCount > 0 {
		full := filepath.Join(p.Root, j.path)
		r, err := fileblocks.OpenBlock(full, j.blockIndex, j.fileSize)
		if err != nil {
			// The file vanished or became unreadable since the Scanner
			// detected it: a LocalFilesystem error per spec.md §7, not a
			// network problem. Retrying won't help until the next scan
			// pass notices the change, so don't retry indefinitely here.
			return backoff.Permanent(err)
		}
		defer r.Close()

		for {
			pos, data, err := r.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				return backoff.Permanent(err)
			}
			pakgPayload, err := wire.Pakg{Position: uint64(pos), Data: data}.Encode()
			if err != nil {
				return backoff.Permanent(err)
			}
			if err := wire.WriteFrame(conn, pakgPayload); err != nil {
				return err
			}
			if p.Metrics != nil {
				p.Metrics.BytesSent.Add(float64(len(data)))
			}
		}
	}

	vrfyPayload, err := wire.Vrfy{}.Encode()
	if err != nil {
		return backoff.Permanent(err)
	}
	return wire.WriteFrame(conn, vrfyPayload)
}
