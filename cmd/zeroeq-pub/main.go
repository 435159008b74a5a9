// Command zeroeq-pub is an example publisher daemon: it reads
// "event-id[ payload]" lines from stdin and publishes each as an
// event, one line per publish call.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zeroeq-go/zeroeq/config"
	"github.com/zeroeq-go/zeroeq/metrics"
	"github.com/zeroeq-go/zeroeq/publisher"
	"github.com/zeroeq-go/zeroeq/uri"
	"github.com/zeroeq-go/zeroeq/wire"
)

var (
	flagURI        string
	flagSession    string
	flagConfigPath string
	flagMetrics    string
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
		Use:   "zeroeq-pub",
		Short: "Publish events read from stdin onto the fabric",
		RunE:  runPublish,
	}
	root.Flags().StringVar(&flagURI, "uri", "", "bind URI, e.g. tcp://*:7100")
	root.Flags().StringVar(&flagSession, "session", "", "session label; empty defers to --config or the default sentinel")
	root.Flags().StringVar(&flagConfigPath, "config", "", "optional config file overlay")
	root.Flags().StringVar(&flagMetrics, "metrics", "", "metrics listen address, e.g. :9469; empty defers to --config or the default :9469")

	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("zeroeq-pub (development build)")
		},
	}
}

func runPublish(cmd *cobra.Command, args []string) error {
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
				fmt.Fprintf(os.Stderr, "zeroeq-pub: metrics server: %v\n", err)
			}
		}()
	}

	u, err := uri.Parse(cfg.URI)
	if err != nil {
		return fmt.Errorf("invalid --uri: %w", err)
	}

	pub, err := publisher.New(publisher.WithURI(u), publisher.WithSession(cfg.Session))
	if err != nil {
		return fmt.Errorf("failed to start publisher: %w", err)
	}
	defer pub.Close()

	fmt.Fprintf(os.Stderr, "zeroeq-pub: bound %s, session %q, instance %s\n", pub.URI(), pub.Session(), pub.ID())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			publishLine(pub, line)
		}
	}
}

func publishLine(pub *publisher.Publisher, line string) {
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}
	fields := strings.SplitN(line, " ", 2)
	event, err := wire.ParseEventID(fields[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "zeroeq-pub: skipping line %q: %v\n", line, err)
		return
	}

	var ok bool
	if len(fields) == 2 {
		ok = pub.PublishPayload(event, []byte(fields[1]))
	} else {
		ok = pub.Publish(event)
	}
	metrics.DefaultMetrics.RecordPublish(ok)
	if !ok {
		fmt.Fprintf(os.Stderr, "zeroeq-pub: publish failed for %s\n", event)
	}
}
