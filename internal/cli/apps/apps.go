package apps

import (
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/openstore/openstore/internal/client"
	"github.com/openstore/openstore/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

func NewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Catalog and package related operations",
		Aliases: []string{
			"a",
		},
	}

	cmd.PersistentFlags().StringP("output", "o", "json", "Output format, json or yaml")

	cmd.AddCommand(newListCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newCreateCmd())
	cmd.AddCommand(newUpdateCmd())
	return cmd
}

func newClient() (*client.Client, error) {
	raw := viper.GetString("url")
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, err
	}

	return client.New(u,
		client.WithAPIKey(viper.GetString("apikey")),
		client.WithUserAgent("openstore-cli/"+version.Version),
	), nil
}

func output(cmd *cobra.Command, v any) error {
	format, _ := cmd.Flags().GetString("output")
	return write(cmd.OutOrStdout(), format, v)
}

func write(w io.Writer, format string, v any) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	default:
		return fmt.Errorf("unknown output format: %s", format)
	}
}
