package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/webconsole/internal/console"
	"github.com/JakeFAU/webconsole/internal/console/sinks"
	"github.com/JakeFAU/webconsole/internal/host"
	"github.com/JakeFAU/webconsole/internal/progress"
)

func newRunCmd() *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "run [operation]",
		Short: "Run a built-in operation with plain-text output",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			registry := host.NewRegistry()
			settings := host.DemoSettings{
				StepDelay:     cfg.Demo.StepDelay,
				FanoutJobs:    cfg.Demo.FanoutJobs,
				FanoutWorkers: cfg.Demo.FanoutWorkers,
			}
			if err := host.Demos(registry, settings, progress.WithHeartbeat(cfg.Progress.HeartbeatPeriod)); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if list || len(args) == 0 {
				for _, op := range registry.List() {
					fmt.Fprintf(out, "%-8s %s\n", op.Name, op.Description)
				}
				return nil
			}
			op, ok := registry.Get(args[0])
			if !ok {
				return fmt.Errorf("%w: unknown operation %q", console.ErrInvalidArgument, args[0])
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			text := console.NewTextSink(out)
			sink, err := console.NewTeeSink(text, sinks.NewLogSink(loggerFrom(cmd).Named(op.Name)))
			if err != nil {
				return err
			}
			return host.Render(ctx, sink, op.Run)
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list operations and exit")
	return cmd
}
