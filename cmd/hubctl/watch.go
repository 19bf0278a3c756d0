package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/projecthub/internal/config"
	"github.com/fyrsmithlabs/projecthub/internal/notify"
)

var (
	watchNATSURL string
	watchSubject string
	watchToken   string
)

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchNATSURL, "nats-url", "nats://127.0.0.1:4222", "NATS server URL")
	watchCmd.Flags().StringVar(&watchSubject, "subject", notify.DefaultSubject, "Subject the daemon publishes switches on")
	watchCmd.Flags().StringVar(&watchToken, "token", "", "NATS auth token")
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print active-project changes as they happen",
	Long: `Subscribe to the NATS subject projecthubd announces switches on and
print one line per switch. Requires notify.enabled in the daemon config.

Examples:
  hubctl watch
  hubctl watch --nats-url nats://10.0.0.5:4222 --json`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	nc, err := notify.Connect(config.NotifyConfig{
		Enabled: true,
		NATSURL: watchNATSURL,
		Subject: watchSubject,
		Token:   config.Secret(watchToken),
	}, zap.NewNop())
	if err != nil {
		return err
	}
	defer nc.Close()

	out := cmd.OutOrStdout()
	events := make(chan notify.Event, 16)
	sub, err := notify.Subscribe(nc, watchSubject, nil, func(ev notify.Event) {
		select {
		case events <- ev:
		default:
		}
	})
	if err != nil {
		return err
	}
	defer func() { _ = sub.Unsubscribe() }()
	if err := nc.Flush(); err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s on %s\n", watchSubject, watchNATSURL)

	ctx := cmd.Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-events:
			if outputJSON {
				if err := printJSON(out, ev); err != nil {
					return err
				}
				continue
			}
			fmt.Fprintf(out, "%s  %s  %s  %s\n",
				ev.SwitchedAt.Local().Format(time.TimeOnly), ev.ProjectID, ev.Name, ev.Path)
		}
	}
}
