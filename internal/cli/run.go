package cli

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/shaiso/legisync/internal/entities"
	"github.com/shaiso/legisync/internal/telemetry"
)

// NewRunCmd создаёт команду запуска выгрузки.
func NewRunCmd(g *Globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run ENTITY [ENTITY...]",
		Short: "Extract entities from the legislative API and load them into the destination",
		Long: `Runs each entity through validate → extract → transform → load.

Entities run one after another, each with its own run id, counters and
write batches. A failed entity does not stop the others; the command
exits non-zero when any of them failed.`,
		Example: `  legisync run senators committees --destination local-file --output-dir ./data
  legisync run votes --from 2024-02-01 --to 2024-06-30 --limit 10 --dry-run`,
		Args: cobra.MinimumNArgs(1),
		ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
			return entities.DefaultRegistry().Names(), cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.LoadConfig(cmd)
			if err != nil {
				return err
			}
			logger := g.Logger()
			out := g.Output()

			publisher, closePublisher := dialPublisher(cmd.Context(), cfg.AMQPURL, logger)
			defer closePublisher()

			app := &App{
				Config:    cfg,
				Logger:    logger,
				Metrics:   telemetry.NewMetrics(prometheus.NewRegistry()),
				Publisher: publisher,
			}
			return runAndReport(cmd.Context(), app, args, out)
		},
	}

	addRunFlags(cmd.Flags())
	return cmd
}

// runAndReport выполняет сущности и печатает отчёты.
func runAndReport(ctx context.Context, app *App, names []string, out *Output) error {
	reports, err := app.RunEntities(ctx, names)
	if len(reports) > 0 {
		out.Reports(reports)
	}
	if err != nil {
		return err
	}

	written := 0
	for _, r := range reports {
		if r.Result != nil {
			written += r.Result.Succeeded
		}
	}
	out.Success(fmt.Sprintf("%d entities done, %d documents written", len(reports), written))
	return nil
}
