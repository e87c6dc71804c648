package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tml/internal/driver"
	"tml/internal/project"
)

var cleanUser bool

func init() {
	cleanCmd.Flags().BoolVar(&cleanUser, "user", false, "also drop the user-level cache")
}

var cleanCmd = &cobra.Command{
	Use:   "clean [path]",
	Short: "Drop cached build artifacts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		start := "."
		if len(args) == 1 {
			start = args[0]
		}
		manifestPath, ok, err := project.FindManifest(start)
		if err != nil {
			return err
		}
		if ok {
			manifest, err := project.LoadManifest(manifestPath)
			if err != nil {
				return err
			}
			cache, err := driver.OpenCache(resolveDir(manifest.Dir, manifest.Build.CacheDir))
			if err != nil {
				return err
			}
			if err := cache.DropAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "project cache dropped")
		}
		if cleanUser {
			cache, err := driver.OpenUserCache("tml")
			if err != nil {
				return err
			}
			if err := cache.DropAll(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "user cache dropped")
		}
		if !ok && !cleanUser {
			return fmt.Errorf("no %s found from %q upward", project.ManifestName, start)
		}
		return nil
	},
}
