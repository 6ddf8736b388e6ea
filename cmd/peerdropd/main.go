// Command peerdropd runs one endpoint of a peerdrop pair: it watches a
// local directory and a fixed peer address, and keeps the two directories
// converged over TCP.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/willabides/kongplete"
	"github.com/thejerf/suture/v4"
	"go.uber.org/automaxprocs/maxprocs"

	"github.com/peerdrop/peerdrop/internal/config"
	"github.com/peerdrop/peerdrop/internal/coordinator"
	"github.com/peerdrop/peerdrop/internal/logger"
	"github.com/peerdrop/peerdrop/internal/metrics"
	"github.com/peerdrop/peerdrop/internal/receiver"
	"github.com/peerdrop/peerdrop/internal/registry"
	"github.com/peerdrop/peerdrop/internal/scanner"
	"github.com/peerdrop/peerdrop/internal/sender"
)

var l = logger.DefaultLogger

// cli is the flag surface SPEC_FULL.md's EXTERNAL INTERFACES section names.
var cli struct {
	IP                 string        `help:"Peer endpoint address." required:""`
	Port               int           `help:"TCP port, shared by listener and dialer." default:"25795"`
	Share              string        `help:"Local directory to synchronize." default:"./share"`
	SockNum            int           `help:"Advertised worker connection count." default:"1" name:"sock-num"`
	Interval           time.Duration `help:"Scanner poll interval." default:"1s"`
	Trace              string        `help:"Comma-separated debug facilities." default:""`
	MetricsAddr        string        `help:"Prometheus /metrics listen address, empty to disable." default:"" name:"metrics-addr"`
	InstallCompletions kongplete.InstallCompletions `cmd:"" help:"Install shell completions."`
}

func main() {
	parser := kong.Must(&cli, kong.Name("peerdropd"), kong.Description("Peer-to-peer folder synchronizer."))
	kongplete.Complete(parser)
	ctx, err := parser.Parse(os.Args[1:])
	if err != nil {
		parser.FatalIfErrorf(err)
	}
	if ctx.Command() == "install-completions" {
		ctx.FatalIfErrorf(ctx.Run())
		return
	}

	if _, err := maxprocs.Set(maxprocs.Logger(l.Debugf)); err != nil {
		l.Warnf("automaxprocs: %v", err)
	}

	opts := config.Options{
		PeerIP:       cli.IP,
		Port:         cli.Port,
		Share:        cli.Share,
		SockNum:      cli.SockNum,
		ScanInterval: cli.Interval,
		Trace:        cli.Trace,
		MetricsAddr:  cli.MetricsAddr,
	}
	l.Configure(opts.Trace)

	if err := os.MkdirAll(opts.Share, 0o777); err != nil {
		l.Fatalf("creating share directory: %v", err)
	}

	if err := run(opts); err != nil {
		l.Fatalf("%v", err)
	}
}

// run wires the four supervised components and blocks until a termination
// signal arrives, per SPEC_FULL.md §2's ordering: Receiver and its listener
// bind before Sender's first worker can dial, and Scanner is added last so
// the Coordinator and ReceiveRegistry exist before the first scan tick.
func run(opts config.Options) error {
	m := metrics.New()
	reg := registry.New()

	senderPool := sender.New(opts.PeerAddr(), opts.Share, m)
	receiverPool := receiver.New(opts.ListenAddr(), opts.Share, nil, m)
	coord := coordinator.New(opts.Share, uint32(opts.SockNum), reg, senderPool, receiverPool, m)
	receiverPool.Handler = coord

	sc := scanner.New(opts.Share, opts.ScanInterval, reg, coord)

	super := suture.NewSimple("peerdropd")
	super.Add(receiverPool)
	super.Add(senderPool)
	super.Add(coord)
	super.Add(sc)

	if opts.MetricsAddr != "" {
		srv, err := m.Server(opts.MetricsAddr)
		if err != nil {
			return err
		}
		super.Add(srv)
	}

	// Announce ourselves to the peer so both sides size their pools.
	senderPool.SendCont(uint32(opts.SockNum), false)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- super.Serve(ctx) }()

	select {
	case <-ctx.Done():
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}
