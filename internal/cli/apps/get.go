package apps

import (
	"github.com/spf13/cobra"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a published package",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			pkg, err := c.Apps.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return output(cmd, pkg)
		},
	}
}

func newStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show category and type counts of the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			stats, err := c.Apps.Stats(cmd.Context())
			if err != nil {
				return err
			}

			return output(cmd, stats)
		},
	}
}
