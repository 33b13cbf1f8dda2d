// Command btsd runs the BTS core service loop: it owns the channel
// pool, the CCCH scheduler, and the hold-off/discovery collaborators,
// and drives them from the GSM TDMA frame clock: parse flags, build
// collaborators, install signal handling, block on a run loop.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/openbts-go/btscore/internal/btscontext"
	"github.com/openbts-go/btscore/internal/ccch"
	"github.com/openbts-go/btscore/internal/channel"
	"github.com/openbts-go/btscore/internal/gsmtime"
	"github.com/openbts-go/btscore/internal/holdoff"
	"github.com/openbts-go/btscore/internal/l1link"
	"github.com/openbts-go/btscore/internal/l3"
	"github.com/openbts-go/btscore/internal/lapdm"
	"github.com/openbts-go/btscore/internal/rr"
	"github.com/openbts-go/btscore/internal/tdma"
)

func main() {
	var (
		configPath = pflag.StringP("config", "c", "btsd.yaml", "path to the BTS timer/threshold config")
		device     = pflag.StringP("device", "d", "", "serial device for the L1 frontend (loopback used when empty)")
		logLevel   = pflag.StringP("log-level", "l", "info", "log level: debug, info, warn, error")
		sdcchCount = pflag.Int("sdcch-channels", 4, "number of SDCCH channels in the pool")
		tchCount   = pflag.Int("tch-channels", 4, "number of TCH/FACCH channels in the pool")
		advertise  = pflag.Bool("advertise", true, "announce this BTS over mDNS")
		port       = pflag.Int("port", 4729, "control port advertised over mDNS")
	)
	pflag.Parse()

	logger := btscontext.NewLogger(*logLevel)

	cfg, err := btscontext.Load(*configPath)
	if err != nil {
		logger.Warn("using built-in timer defaults", "err", err)
		cfg = defaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", "err", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		logger.Info("shutdown requested")
		cancel()
	}()

	hold := holdoff.NoGPIO
	if chip := os.Getenv("BTSD_HOLDOFF_GPIO_CHIP"); chip != "" {
		m, err := holdoff.Open(chip, 0, holdoff.ActiveHigh)
		if err != nil {
			logger.Fatal("opening hold-off GPIO line", "err", err)
		}
		hold = m
	}
	defer hold.Close()

	var link *l1link.Link
	if *device == "" {
		var closeFn func() error
		var slave string
		link, slave, closeFn, err = l1link.LoopbackPair()
		if err != nil {
			logger.Fatal("opening loopback L1 link", "err", err)
		}
		defer closeFn()
		logger.Info("L1 link open", "transport", "loopback", "slave", slave)
	} else {
		link, err = l1link.OpenTTY(*device, 115200)
		if err != nil {
			logger.Fatal("opening L1 tty", "err", err)
		}
		defer link.Close()
		logger.Info("L1 link open", "transport", "tty", "device", *device)
	}

	chanParams := channel.Params{
		T3101:            time.Duration(cfg.GSM.Timer.T3101),
		T3109:            time.Duration(cfg.GSM.Timer.T3109),
		T3113:            time.Duration(cfg.GSM.Timer.T3113),
		RadioLinkTimeout: cfg.GSM.CellOptions.RadioLinkTimeout,
		HandoverHistory:  cfg.GSM.Handover.RXLevDL.History,
	}
	pool := buildPool(*sdcchCount, *tchCount, chanParams)
	queues := ccch.NewQueues()
	sched := ccch.NewScheduler(queues)
	sched.NMO = ccch.NMOI
	sched.HoldOff = hold.Active
	sched.IsPagingSlot = tdma.IsPagingSlot
	sched.SMaxAgeFrames = ccch.SMaxAgeFrames(cfg.GSM.RACH.TxInteger)
	sched.ReleasePreallocated = func(r *rr.Rach) {
		logger.Warn("RACH aged past sMaxAge, releasing preallocated channel", "ra", r.RA)
		if ch, ok := r.Channel.(*channel.Channel); ok {
			_ = ch.Release(time.Now())
		}
	}

	var currentFrame atomic.Uint32
	router := &uplinkRouter{}

	// No neighbour-ARFCN table is modeled in btscontext.Config yet, so
	// freq-index-to-ARFCN resolution is a stub: every report is dropped
	// before it reaches AddNeighbour, leaving only the serving-cell trend
	// populated. A real deployment would resolve this from the BCCH
	// allocation list broadcast in System Information.
	freqIndexToARFCN := func(int) (uint16, bool) { return 0, false }

	for _, ch := range pool.Channels() {
		ch := ch
		go ch.RunSacchIngest(ctx.Done(), currentFrame.Load, freqIndexToARFCN)
	}

	neci := rr.NECI(cfg.GSM.CellSelection.NECI != 0)
	vea := cfg.Control.VEA
	sdcchReserve := cfg.GSM.Channels.SDCCHReserve

	link.SetWriteLowSide(func(f l1link.Frame) {
		if len(f) == lapdm.FrameBytes {
			routeUplinkFrame(logger, router, f)
			return
		}
		handleUplinkBurst(logger, pool, queues, sched.Reject, router, f, neci, vea, sdcchReserve)
	})
	go func() {
		if err := link.ReceiveLoop(ctx, lapdm.FrameBytes); err != nil && ctx.Err() == nil {
			logger.Warn("L1 receive loop stopped", "err", err)
		}
	}()

	var advertiser *btscontext.Advertiser
	if *advertise {
		advertiser, err = btscontext.Advertise(ctx, cfg, *port, logger)
		if err != nil {
			logger.Warn("mDNS advertisement disabled", "err", err)
		} else {
			defer advertiser.Close()
		}
	}

	logger.Info("btsd running",
		"sdcch", *sdcchCount, "tch", *tchCount,
		"arfcn", cfg.ARFCN, "lac", cfg.LAC)

	runClock(ctx, logger, pool, sched, &currentFrame)
	logger.Info("btsd stopped")
}

// runClock drives the GSM frame clock: every TDMA frame period it ticks
// the CCCH scheduler, and once per 51-frame multiframe it sweeps the
// channel pool for channels that have become recyclable. This stands in for the per-collaborator service threads
// describes, collapsed into one loop since btsd has a single
// CCCH group and a small static channel pool.
func runClock(ctx context.Context, logger interface {
	Debug(msg any, kv ...any)
}, pool *channel.Pool, sched *ccch.Scheduler, currentFrame *atomic.Uint32) {
	ticker := time.NewTicker(time.Duration(gsmtime.FrameDurationNanos))
	defer ticker.Stop()

	var fn uint32
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			work, item := sched.Tick(now, fn)
			if work != ccch.WorkIdleFiller {
				logger.Debug("ccch tick", "fn", fn, "work", work, "item", item)
			}
			if fn%51 == 0 {
				pool.Sweep(now)
			}
			fn = (fn + 1) % uint32(gsmtime.Hyperframe)
			currentFrame.Store(fn)
		}
	}
}

// uplinkRouter tracks the most recently RACH-assigned channel so that
// subsequent 23-octet LAPDm frames arriving over the single shared L1
// link can be routed to that channel's SAPI0/SAPI3 entity. l1link.Frame
// carries no timeslot/channel identity of its own, so a real multi-
// channel deployment needs L1 to tag each frame with the timeslot it
// arrived on; this router is the documented stand-in for that tagging
// in the single-physical-link demo binary.
type uplinkRouter struct {
	mu     sync.Mutex
	active *channel.Channel
}

func (r *uplinkRouter) setActive(ch *channel.Channel) {
	r.mu.Lock()
	r.active = ch
	r.mu.Unlock()
}

func (r *uplinkRouter) getActive() *channel.Channel {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

// routeUplinkFrame decodes a 23-octet uplink burst as a LAPDm frame and
// delivers it to the currently active channel's matching SAPI entity.
func routeUplinkFrame(logger interface {
	Warn(msg any, kv ...any)
}, router *uplinkRouter, f l1link.Frame) {
	decoded, err := lapdm.Decode(f)
	if err != nil {
		logger.Warn("dropping undecodable uplink LAPDm frame", "err", err)
		return
	}
	ch := router.getActive()
	if ch == nil {
		return
	}
	switch decoded.Address.SAPI {
	case lapdm.SAPIRR:
		ch.SAPI0.Receive(decoded)
	case lapdm.SAPISMS:
		if ch.SAPI3 != nil {
			ch.SAPI3.Receive(decoded)
		}
	}
}

// handleUplinkBurst classifies a raw uplink burst as a RACH access
// attempt and, if accepted, preallocates a channel, makes it the
// uplinkRouter's active channel so the LAPDm frames that follow over
// the shared L1 link reach its SAPI0/SAPI3 entities, and enqueues the
// RACH for the CCCH scheduler to grant. neci/vea select the cell's
// channel-request decode table, and sdcchReserve holds the last free
// SDCCHs back from location-updating requests so ordinary signalling
// can still get one under load.
func handleUplinkBurst(logger interface {
	Info(msg any, kv ...any)
	Warn(msg any, kv ...any)
}, pool *channel.Pool, queues *ccch.Queues, reject *ccch.RejectQueue, router *uplinkRouter, f l1link.Frame, neci rr.NECI, vea bool, sdcchReserve int) {
	if len(f) == 0 {
		return
	}
	ra := f[0]
	record := &rr.Rach{RA: ra, When: time.Now()}
	needed := rr.DecodeChannelNeeded(ra, neci, vea)

	switch needed {
	case rr.ChannelSDCCH, rr.ChannelTCHF:
		typ := channel.TypeSDCCH
		if needed == rr.ChannelTCHF {
			typ = channel.TypeTCHFACCH
		}
		now := time.Now()
		if typ == channel.TypeSDCCH && rr.RequestingLUR(ra) &&
			pool.Free(now, channel.TypeSDCCH) <= sdcchReserve {
			logger.Warn("LUR refused: SDCCH pool at reserve floor", "ra", ra, "reserve", sdcchReserve)
			if reject != nil {
				reject.Reject(l3.RequestReference{RA: ra})
			}
			return
		}
		ch, err := pool.Allocate(now, typ)
		if err != nil {
			logger.Warn("RACH congestion: no channel available", "ra", ra)
			if reject != nil {
				reject.Reject(l3.RequestReference{RA: ra})
			}
			return
		}
		record.Channel = ch
		router.setActive(ch)
	default:
		logger.Info("RACH not actionable", "ra", ra, "classified", needed)
		return
	}

	queues.EnqueueRach(record)
}

func buildPool(sdcch, tch int, p channel.Params) *channel.Pool {
	channels := make([]*channel.Channel, 0, sdcch+tch)
	for i := 0; i < sdcch; i++ {
		channels = append(channels, channel.NewWithParams(channel.TypeSDCCH, p))
	}
	for i := 0; i < tch; i++ {
		channels = append(channels, channel.NewWithParams(channel.TypeTCHFACCH, p))
	}
	return channel.NewPool(channels)
}

// defaultConfig supplies the built-in timer/threshold defaults used
// when no config file is present, matching internal/channel's own
// DefaultT3101/T3109/T3111/T3113 constants so a bare `btsd` invocation
// with no -c flag still passes Config.Validate.
func defaultConfig() *btscontext.Config {
	cfg := &btscontext.Config{}
	cfg.GSM.Timer.T3101 = btscontext.Duration(4 * time.Second)
	cfg.GSM.Timer.T3109 = btscontext.Duration(30 * time.Second)
	cfg.GSM.Timer.T3113 = btscontext.Duration(7 * time.Second)
	cfg.GSM.CellOptions.RadioLinkTimeout = channel.RadioLinkTimeout
	cfg.GSM.Handover.Margin = 6
	cfg.GSM.Handover.RXLevDL.Target = -85
	cfg.GSM.Handover.RXLevDL.History = 4
	cfg.GSM.RACH.TxInteger = 9
	cfg.GSM.Channels.SDCCHReserve = 1
	cfg.ARFCN = 51
	cfg.LAC = 1
	cfg.CellIdentity = 1
	return cfg
}
