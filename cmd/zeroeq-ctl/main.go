// Command zeroeq-ctl is a small introspection tool: it browses
// discovery and prints the instances it sees, and can attach a
// subscriber in sniff mode to print arbitrary event traffic, standing
// in for the original C++ implementation's HTTP introspection server (see
// SPEC_FULL.md's supplemented feature 4).
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zeroeq-go/zeroeq/discovery"
	"github.com/zeroeq-go/zeroeq/receiver"
	"github.com/zeroeq-go/zeroeq/subscriber"
	"github.com/zeroeq-go/zeroeq/uri"
	"github.com/zeroeq-go/zeroeq/wire"
)

var (
	flagSession string
	flagTimeout time.Duration
	flagURI     string
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
		Use:   "zeroeq-ctl",
		Short: "Introspect the fabric's discovery state and traffic",
	}
	root.AddCommand(newDiscoverCmd())
	root.AddCommand(newSniffCmd())
	return root
}

func newDiscoverCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "discover",
		Short: "Browse for publisher instances and print what is found",
		RunE:  runDiscover,
	}
	cmd.Flags().StringVar(&flagSession, "session", "", "only print instances in this session (empty prints all)")
	cmd.Flags().DurationVar(&flagTimeout, "timeout", 5*time.Second, "how long to browse before reporting")
	return cmd
}

func runDiscover(cmd *cobra.Command, args []string) error {
	adapter := discovery.NewZeroconfAdapter()
	defer adapter.Close()

	if !adapter.IsAvailable() {
		return fmt.Errorf("no discovery backend is available in this environment")
	}
	if err := adapter.Browse(discovery.ServiceName); err != nil {
		return fmt.Errorf("failed to start browse: %w", err)
	}

	seen := make(map[string]discovery.Instance)
	deadline := time.Now().Add(flagTimeout)
	for time.Now().Before(deadline) {
		for _, ev := range adapter.Poll() {
			switch ev.Kind {
			case discovery.Added:
				seen[ev.Instance.UUID.String()] = ev.Instance
			case discovery.Removed:
				delete(seen, ev.Instance.UUID.String())
			}
		}
		time.Sleep(100 * time.Millisecond)
	}

	if len(seen) == 0 {
		fmt.Println("no instances found")
		return nil
	}
	for _, inst := range seen {
		if flagSession != "" && inst.Session != flagSession {
			continue
		}
		fmt.Printf("%s\tsession=%s\tuser=%s\tapp=%s\t%s:%d\n",
			inst.UUID, inst.Session, inst.User, inst.Application, inst.Host, inst.Port)
	}
	return nil
}

func newSniffCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sniff",
		Short: "Attach a subscriber and print every event that arrives",
		RunE:  runSniff,
	}
	cmd.Flags().StringVar(&flagSession, "session", "", "session to subscribe under (empty resolves the default sentinel)")
	cmd.Flags().StringVar(&flagURI, "uri", "", "connect URI (empty defers to discovery)")
	return cmd
}

func runSniff(cmd *cobra.Command, args []string) error {
	u, err := uri.Parse(flagURI)
	if err != nil {
		return fmt.Errorf("invalid --uri: %w", err)
	}

	opts := []subscriber.Option{subscriber.WithURI(u)}
	if flagSession != "" {
		opts = append(opts, subscriber.WithSession(flagSession))
	}

	group := receiver.NewGroup()
	opts = append(opts, subscriber.WithGroup(group))

	sub, err := subscriber.New(opts...)
	if err != nil {
		return fmt.Errorf("failed to start subscriber: %w", err)
	}
	defer sub.Close()

	sub.SubscribeAll(func(id wire.EventID, payload []byte) {
		fmt.Printf("%s %s %d bytes\n", time.Now().Format(time.RFC3339), id, len(payload))
	})

	fmt.Fprintf(os.Stderr, "zeroeq-ctl: sniffing session %q, instance %s\n", sub.Session(), sub.ID())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	for ctx.Err() == nil {
		group.Receive(time.Second)
	}
	return nil
}
