// Command zeroeq-sub is an example subscriber daemon: it subscribes
// to a set of event ids given on the command line and prints each
// arrival to stdout.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeroeq-go/zeroeq/config"
	"github.com/zeroeq-go/zeroeq/metrics"
	"github.com/zeroeq-go/zeroeq/receiver"
	"github.com/zeroeq-go/zeroeq/subscriber"
	"github.com/zeroeq-go/zeroeq/uri"
	"github.com/zeroeq-go/zeroeq/wire"
)

var (
	flagURI        string
	flagSession    string
	flagConfigPath string
	flagMetrics    string
	flagEvents     []string
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "zeroeq-sub",
		Short: "Subscribe to events on the fabric and print them",
		RunE:  runSubscribe,
	}
	root.Flags().StringVar(&flagURI, "uri", "", "connect URI, e.g. tcp://host:7100 (empty defers to discovery)")
	root.Flags().StringVar(&flagSession, "session", "", "session label; empty defers to --config or the default sentinel")
	root.Flags().StringVar(&flagConfigPath, "config", "", "optional config file overlay")
	root.Flags().StringVar(&flagMetrics, "metrics", "", "metrics listen address, e.g. :9470; empty defers to --config or the default :9469")
	root.Flags().StringArrayVar(&flagEvents, "event", nil, "event id to subscribe to, hex, repeatable; none means print every dispatched event")
	return root
}

func runSubscribe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfigPath)
	if err != nil {
		return err
	}
	if flagSession != "" {
		cfg.Session = flagSession
	}
	if flagURI != "" {
		cfg.URI = flagURI
	}
	if flagMetrics != "" {
		cfg.MetricsAddr = flagMetrics
	}

	if cfg.MetricsAddr != "" {
		srv := metrics.NewServer(cfg.MetricsAddr)
		go func() {
			if err := srv.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "zeroeq-sub: metrics server: %v\n", err)
			}
		}()
	}

	u, err := uri.Parse(cfg.URI)
	if err != nil {
		return fmt.Errorf("invalid --uri: %w", err)
	}

	group := receiver.NewGroup()
	sub, err := subscriber.New(
		subscriber.WithURI(u),
		subscriber.WithSession(cfg.Session),
		subscriber.WithGroup(group),
	)
	if err != nil {
		return fmt.Errorf("failed to start subscriber: %w", err)
	}
	defer sub.Close()

	if len(flagEvents) == 0 {
		sub.SubscribeAll(func(id wire.EventID, payload []byte) {
			metrics.DefaultMetrics.RecordReceive(id.String())
			fmt.Printf("%s %s %q\n", time.Now().Format(time.RFC3339), id, payload)
		})
	}
	for _, raw := range flagEvents {
		event, err := wire.ParseEventID(raw)
		if err != nil {
			return fmt.Errorf("invalid --event %q: %w", raw, err)
		}
		sub.SubscribePayload(event, func(id wire.EventID, payload []byte) {
			metrics.DefaultMetrics.RecordReceive(id.String())
			fmt.Printf("%s %s %q\n", time.Now().Format(time.RFC3339), id, payload)
		})
	}

	fmt.Fprintf(os.Stderr, "zeroeq-sub: session %q, instance %s, watching %d event id(s)\n", sub.Session(), sub.ID(), len(flagEvents))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for ctx.Err() == nil {
		group.Receive(time.Second)
	}
	return nil
}
