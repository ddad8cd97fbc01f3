package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/webconsole/internal/console"
	"github.com/JakeFAU/webconsole/internal/relay"
)

func newRelayCmd() *cobra.Command {
	var (
		apiKey string
		source string
	)
	cmd := &cobra.Command{
		Use:   "relay <url>",
		Short: "Relay a remote operation's stream into this terminal",
		Long: `relay connects to a remote /v1/operations/{name}/relay endpoint, prints the
relayed messages as plain text and lists the signals received at the end.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			if apiKey == "" {
				apiKey = cfg.Relay.APIKey
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if cfg.Relay.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, cfg.Relay.Timeout)
				defer cancel()
			}

			out := cmd.OutOrStdout()
			recv := &relay.Receiver{
				URL:    args[0],
				Client: http.DefaultClient,
				Logger: loggerFrom(cmd).Named("relay"),
			}
			if apiKey != "" {
				recv.BeforeConnect = func(req *http.Request) error {
					req.Header.Set("X-API-Key", apiKey)
					return nil
				}
			}
			signals, err := recv.Receive(ctx, console.NewTextSink(out))
			if err != nil {
				return fmt.Errorf("relay %s: %w", source, err)
			}
			for _, s := range signals {
				fmt.Fprintf(out, "%s%s\n", relay.SignalPrefix, s)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&apiKey, "api-key", "", "API key sent as X-API-Key (defaults to relay.api_key)")
	cmd.Flags().StringVar(&source, "name", "remote", "name used in error messages")
	return cmd
}
