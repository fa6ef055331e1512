// Init command: create the config and data directories.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/pickplace/internal/paths"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the configuration and data directories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// PersistentPreRunE already wrote the default config.yaml.
		configDir, err := resolveConfigDir()
		if err != nil {
			return sysError(err)
		}
		dataDir, err := resolveDataDir()
		if err != nil {
			return sysError(err)
		}

		jr, err := attachJournal(dataDir)
		if err != nil {
			return sysError(err)
		}
		if err := jr.Detach(); err != nil {
			return sysError(err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "pickplace initialized")
		fmt.Fprintln(out, "  config:", paths.InDir(configDir, paths.ConfigFileName))
		fmt.Fprintln(out, "  data:  ", dataDir)
		fmt.Fprintln(out, "  paths: ", cfg.cachePath(dataDir))

		catalog := cfg.Catalog()
		items := make([]string, 0, len(catalog.Items))
		for _, id := range catalog.ItemIDs() {
			items = append(items, string(id))
		}
		locations := make([]string, 0, len(catalog.Locations))
		for _, id := range catalog.LocationIDs() {
			locations = append(locations, string(id))
		}
		fmt.Fprintln(out, "  items: ", strings.Join(items, ", "))
		fmt.Fprintln(out, "  bins:  ", strings.Join(locations, ", "))
		return nil
	},
}
