package main

import (
	"context"
	"time"

	"github.com/lightningnetwork/lnd/signal"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli"
	"go.uber.org/zap"

	"github.com/babylonchain/btc-bridge/metrics"
)

var serveMetricsCommand = cli.Command{
	Name:        "serve-metrics",
	Usage:       "bridgecli serve-metrics",
	Description: "Serve the bridge queue and SPV gauges to Prometheus until interrupted.",
	Flags:       []cli.Flag{homeCliFlag, rskHeightCliFlag},
	Action:      serveMetrics,
}

func serveMetrics(c *cli.Context) error {
	homePath, err := homePath(c)
	if err != nil {
		return err
	}
	n, err := openNode(homePath)
	if err != nil {
		return err
	}
	defer n.Close()

	addr, err := n.cfg.Metrics.Address()
	if err != nil {
		return err
	}

	// Hook interceptor for os signals.
	shutdownInterceptor, err := signal.Intercept()
	if err != nil {
		return err
	}

	server, err := metrics.Start(addr, prometheus.DefaultGatherer, n.logger)
	if err != nil {
		return err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Stop(ctx)
	}()

	height := c.Uint64(rskHeightFlag)
	ticker := time.NewTicker(n.cfg.Metrics.UpdateInterval)
	defer ticker.Stop()
	for {
		if err := n.refreshGauges(height); err != nil {
			n.logger.Error("failed to refresh the bridge gauges", zap.Error(err))
		}
		select {
		case <-ticker.C:
		case <-shutdownInterceptor.ShutdownChannel():
			return nil
		}
	}
}

func (n *node) refreshGauges(height uint64) error {
	s, err := n.support(height)
	if err != nil {
		return err
	}
	sizes, err := s.QueueSizes()
	if err != nil {
		return err
	}
	n.metrics.SetQueueSizes(sizes.ReleaseRequests, sizes.WaitingConfirmations, sizes.WaitingSignatures)

	best, err := s.BtcBestChainHeight()
	if err != nil {
		return err
	}
	n.metrics.SetSpvBestHeight(best)
	return nil
}
