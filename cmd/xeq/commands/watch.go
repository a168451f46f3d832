package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/xequation/xequation/pkg/config"
)

func newWatchCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch <workbook>",
		Short: "Re-evaluate a workbook every time it is saved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			path := args[0]
			rerun := func() {
				_, m, err := a.loadAndRun(path)
				if err != nil {
					log.Error().Err(err).Str("path", path).Msg("Workbook run failed")
					return
				}
				if err := printEquations(cmd.OutOrStdout(), m); err != nil {
					log.Error().Err(err).Msg("Failed to print results")
				}
			}

			rerun()

			watcher := config.NewWatcher(path, config.DefaultWatchDelay, a.tel.Logger.NewComponentLogger("watcher").Zerolog())
			return watcher.Run(a.ctx, rerun)
		},
	}

	return cmd
}
