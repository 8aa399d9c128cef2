package apps

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

type submitOpts struct {
	packagePath string
	fields      map[string]string
}

// metadataFlags are the string metadata fields accepted by the server.
var metadataFlags = []struct {
	name, field, usage string
}{
	{"name", "name", "Display name"},
	{"category", "category", "Category"},
	{"description", "description", "Description"},
	{"tagline", "tagline", "Short tagline"},
	{"license", "license", "License"},
	{"source", "source", "Source code url"},
	{"support-url", "support_url", "Support url"},
	{"donate-url", "donate_url", "Donation url"},
	{"video-url", "video_url", "Video url"},
	{"changelog", "changelog", "Changelog"},
	{"maintainer", "maintainer", "Maintainer id, admins only"},
}

func addSubmitFlags(flags *pflag.FlagSet, opts *submitOpts) {
	flags.StringVarP(&opts.packagePath, "path", "f", "", "Path to the click or snap package")
	for _, f := range metadataFlags {
		flags.String(f.name, "", f.usage)
	}
	flags.StringSlice("keywords", nil, "Keywords")
	flags.StringSlice("types", nil, "Package types, admins only")
	flags.Bool("published", false, "Publish the package")
	flags.Bool("nsfw", false, "Mark the package as not safe for work")
}

// collectFields returns the metadata of the flags explicitly set.
func collectFields(flags *pflag.FlagSet) map[string]string {
	fields := map[string]string{}
	for _, f := range metadataFlags {
		if flags.Changed(f.name) {
			v, _ := flags.GetString(f.name)
			fields[f.field] = v
		}
	}

	for _, name := range []string{"keywords", "types"} {
		if flags.Changed(name) {
			v, _ := flags.GetStringSlice(name)
			fields[name] = strings.Join(v, ",")
		}
	}

	for _, name := range []string{"published", "nsfw"} {
		if flags.Changed(name) {
			v, _ := flags.GetBool(name)
			fields[name] = strconv.FormatBool(v)
		}
	}
	return fields
}

func newCreateCmd() *cobra.Command {
	opts := &submitOpts{}

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Submit a new package",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			pkg, err := c.Apps.Create(cmd.Context(), opts.packagePath, collectFields(cmd.Flags()))
			if err != nil {
				return err
			}

			return output(cmd, pkg)
		},
	}

	addSubmitFlags(cmd.Flags(), opts)
	cmd.MarkFlagRequired("path")
	return cmd
}

func newUpdateCmd() *cobra.Command {
	opts := &submitOpts{}

	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Upload a new revision of a package or change its metadata",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			pkg, err := c.Apps.Update(cmd.Context(), args[0], opts.packagePath, collectFields(cmd.Flags()))
			if err != nil {
				return err
			}

			return output(cmd, pkg)
		},
	}

	addSubmitFlags(cmd.Flags(), opts)
	return cmd
}
