package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/opd-ai/udpqueue"
	"github.com/opd-ai/udpqueue/config"
	"github.com/opd-ai/udpqueue/media"
	"github.com/opd-ai/udpqueue/metrics"
	testsim "github.com/opd-ai/udpqueue/testing"
	"github.com/opd-ai/udpqueue/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	targetAddress string        // destination IP
	targetPort    uint16        // destination port
	streams       int           // number of synthetic streams
	runDuration   time.Duration // zero runs until interrupted
	listenAddr    string        // local bind address
	network       string        // udp, udp4 or udp6
	simulate      bool          // record sends in memory instead of using a socket
	metricsAddr   string        // serve /metrics here when set
)

// opusSilence is a 20ms Opus silence frame.
var opusSilence = []byte{0xf8, 0xff, 0xfe}

// runCmd starts a pool with synthetic streams
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Send paced synthetic streams to a target",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}
		level, err := logrus.ParseLevel(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err)
		}
		logrus.SetLevel(level)

		if !cfg.Enabled {
			logrus.WithFields(logrus.Fields{
				"function": "run",
			}).Warn("Pacing disabled in configuration, nothing to do")
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		if runDuration > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, runDuration)
			defer cancel()
		}

		return run(ctx, cfg)
	},
}

func init() {
	runCmd.Flags().StringVar(&targetAddress, "target", "127.0.0.1", "Destination IP address")
	runCmd.Flags().Uint16Var(&targetPort, "port", 5004, "Destination UDP port")
	runCmd.Flags().IntVar(&streams, "streams", 10, "Number of synthetic streams")
	runCmd.Flags().DurationVar(&runDuration, "duration", 10*time.Second, "How long to run (0 runs until interrupted)")
	runCmd.Flags().StringVar(&listenAddr, "listen", ":0", "Local UDP bind address")
	runCmd.Flags().StringVar(&network, "network", "udp", "Socket network (udp, udp4, udp6)")
	runCmd.Flags().BoolVar(&simulate, "simulate", false, "Record sends in memory instead of opening a socket")
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
}

func run(ctx context.Context, cfg *config.Config) error {
	if streams <= 0 {
		return fmt.Errorf("streams must be positive, got %d", streams)
	}

	sender, err := openSender(cfg)
	if err != nil {
		return err
	}
	defer sender.Close()

	reg := prometheus.NewRegistry()
	recorder, err := metrics.NewRecorder(reg, "")
	if err != nil {
		return err
	}
	if metricsAddr != "" {
		server := serveMetrics(reg)
		defer server.Close()
	}

	options := cfg.PoolOptions()
	options.Transport = sender
	options.Recorder = recorder

	pool, err := udpqueue.NewPool(options)
	if err != nil {
		return err
	}
	defer pool.Close()

	pollers := make([]*media.Poller, 0, streams)
	defer func() {
		for _, p := range pollers {
			p.Stop()
		}
	}()
	for i := 0; i < streams; i++ {
		poller, _, err := pool.NewPoller(silence{}, targetAddress, targetPort)
		if err != nil {
			return err
		}
		if err := poller.Start(ctx); err != nil {
			return err
		}
		pollers = append(pollers, poller)
	}

	logrus.WithFields(logrus.Fields{
		"function":  "run",
		"target":    fmt.Sprintf("%s:%d", targetAddress, targetPort),
		"streams":   streams,
		"pool_size": pool.Size(),
		"capacity":  pool.Capacity(),
		"simulate":  simulate,
	}).Info("Streaming")

	<-ctx.Done()

	stats := pool.Stats()
	logrus.WithFields(logrus.Fields{
		"function":     "run",
		"enqueued":     stats.Enqueued,
		"rejected":     stats.Rejected,
		"sent":         stats.Sent,
		"bytes_sent":   stats.BytesSent,
		"failed":       stats.Failed,
		"no_transport": stats.NoTransport,
		"ticks":        stats.Ticks,
	}).Info("Run complete")

	return nil
}

// openSender returns the transport for the run.
func openSender(cfg *config.Config) (transport.Transport, error) {
	if simulate {
		return testsim.NewSimulatedTransport("simulated"), nil
	}
	udp, err := transport.NewUDPTransport(network, listenAddr, cfg.TransportOptions()...)
	if err != nil {
		return nil, err
	}
	return udp, nil
}

func serveMetrics(reg *prometheus.Registry) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: metricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.WithFields(logrus.Fields{
				"function": "serveMetrics",
				"addr":     metricsAddr,
				"error":    err.Error(),
			}).Error("Metrics server failed")
		}
	}()
	return server
}

// silence is an endless source of Opus silence frames.
type silence struct{}

func (silence) CanProvide() bool         { return true }
func (silence) Provide() ([]byte, error) { return opusSilence, nil }
