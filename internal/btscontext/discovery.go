package btscontext

import (
	"context"
	"fmt"

	"github.com/brutella/dnssd"
	"github.com/charmbracelet/log"
)

// serviceType is the DNS-SD service type under which this core
// advertises its control endpoint, in the conventional
// "_service._proto" form.
const serviceType = "_gsm-bts._tcp"

// Advertiser is a running DNS-SD responder; Close stops it.
type Advertiser struct {
	responder dnssd.Responder
	cancel    context.CancelFunc
	done      chan struct{}
}

// Advertise announces this BTS's control endpoint (cell identity, LAC,
// ARFCN encoded as TXT records) over mDNS so local operator tooling can
// discover a running core without static config.
func Advertise(ctx context.Context, cfg *Config, port int, logger *log.Logger) (*Advertiser, error) {
	name := fmt.Sprintf("bts-%d", cfg.CellIdentity)
	svcCfg := dnssd.Config{
		Name: name,
		Type: serviceType,
		Port: port,
		Text: map[string]string{
			"lac":   fmt.Sprintf("%d", cfg.LAC),
			"arfcn": fmt.Sprintf("%d", cfg.ARFCN),
		},
	}

	svc, err := dnssd.NewService(svcCfg)
	if err != nil {
		return nil, fmt.Errorf("btscontext: new dnssd service: %w", err)
	}

	responder, err := dnssd.NewResponder()
	if err != nil {
		return nil, fmt.Errorf("btscontext: new dnssd responder: %w", err)
	}
	if _, err := responder.Add(svc); err != nil {
		return nil, fmt.Errorf("btscontext: add dnssd service: %w", err)
	}

	respondCtx, cancel := context.WithCancel(ctx)
	a := &Advertiser{responder: responder, cancel: cancel, done: make(chan struct{})}
	go func() {
		defer close(a.done)
		if err := responder.Respond(respondCtx); err != nil && respondCtx.Err() == nil {
			logger.Error("dnssd responder stopped", "err", err)
		}
	}()

	logger.Info("advertising BTS control endpoint", "name", name, "type", serviceType, "port", port)
	return a, nil
}

// Close stops the responder and waits for its goroutine to exit.
func (a *Advertiser) Close() {
	a.cancel()
	<-a.done
}
