package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/shopping-cli/internal/config"
)

var profilesJSON bool

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List the available answer profiles",
	RunE: func(cmd *cobra.Command, args []string) error {
		profiles, err := loadProfiles(cfg)
		if err != nil {
			return err
		}
		return writeProfiles(cmd.OutOrStdout(), profiles, profilesJSON)
	},
}

func init() {
	profilesCmd.Flags().BoolVar(&profilesJSON, "json", false, "print profiles as JSON")
	rootCmd.AddCommand(profilesCmd)
}

func profileList(profiles *config.Profiles) []config.Profile {
	out := make([]config.Profile, 0, len(profiles.Names()))
	for _, name := range profiles.Names() {
		p, err := profiles.Get(name)
		if err != nil {
			continue
		}
		out = append(out, p)
	}
	return out
}

func writeProfiles(w io.Writer, profiles *config.Profiles, asJSON bool) error {
	list := profileList(profiles)
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(map[string]any{
			"default":  profiles.Default(),
			"profiles": list,
		}), "encode profiles")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODEL\tQUERIES\tPAGES\tDEPTH\tVERBOSITY\tRETRIES") //nolint:errcheck
	for _, p := range list {
		name := p.Name
		if name == profiles.Default() {
			name += " *"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%s\t%s\t%d\n", //nolint:errcheck
			name, p.Model, p.MaxSearchQueries, p.MaxPagesToScrape, p.SearchDepth, p.Verbosity, p.RetryMaxAttempts)
	}
	return tw.Flush()
}
