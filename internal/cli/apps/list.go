package apps

import (
	"github.com/openstore/openstore/internal/client"
	"github.com/spf13/cobra"
)

type listOpts struct {
	client.ListOptions
	manage bool
}

func newListCmd() *cobra.Command {
	opts := &listOpts{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List packages of the catalog",
		Args:  cobra.NoArgs,
		RunE:  runListCmd(opts),
	}

	flags := cmd.Flags()
	flags.BoolVar(&opts.manage, "manage", false, "List the packages the api key may manage, published or not")
	flags.StringVar(&opts.Architecture, "architecture", "", "Only packages running on this architecture")
	flags.StringVar(&opts.Category, "category", "", "Only packages of this category")
	flags.StringSliceVar(&opts.Frameworks, "frameworks", nil, "Only packages built for one of these frameworks")
	flags.StringVarP(&opts.Search, "search", "s", "", "Search term")
	flags.StringVar(&opts.Sort, "sort", "", "Sort key, prefix with - for descending order")
	flags.StringSliceVar(&opts.Types, "types", nil, "Only packages of these types")
	flags.IntVar(&opts.Limit, "limit", 0, "Maximum number of packages")
	flags.IntVar(&opts.Skip, "skip", 0, "Number of packages to skip")

	return cmd
}

func runListCmd(opts *listOpts) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		c, err := newClient()
		if err != nil {
			return err
		}

		list := c.Apps.List
		if opts.manage {
			list = c.Apps.Manage
		}

		page, err := list(cmd.Context(), &opts.ListOptions)
		if err != nil {
			return err
		}

		return output(cmd, page)
	}
}
