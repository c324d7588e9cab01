package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hako/durafmt"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/luma-launcher/luma/internal/plugin"
)

const durationDisplayUnits = 2

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List discovered plugins",
	RunE:  runPluginsList,
}

var pluginsLoadCmd = &cobra.Command{
	Use:   "load <id>",
	Short: "Load a plugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withLauncher(func(l *launcher) error {
			return l.provider.Load(args[0])
		})
	},
}

var pluginsUnloadCmd = &cobra.Command{
	Use:   "unload <id>",
	Short: "Unload a plugin",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		return withLauncher(func(l *launcher) error {
			return l.provider.Unload(args[0])
		})
	},
}

var pluginsInfoCmd = &cobra.Command{
	Use:   "info <id>",
	Short: "Show plugin details",
	Args:  cobra.ExactArgs(1),
	RunE:  runPluginsInfo,
}

func init() {
	rootCmd.AddCommand(pluginsCmd)
	pluginsCmd.AddCommand(pluginsLoadCmd)
	pluginsCmd.AddCommand(pluginsUnloadCmd)
	pluginsCmd.AddCommand(pluginsInfoCmd)
}

func withLauncher(fn func(*launcher) error) error {
	l, err := newLauncher()
	if err != nil {
		return err
	}
	defer l.shutdown()

	return fn(l)
}

func runPluginsList(_ *cobra.Command, _ []string) error {
	return withLauncher(func(l *launcher) error {
		loaders := l.provider.Loaders()
		if len(loaders) == 0 {
			fmt.Println("no plugins found")

			return nil
		}

		t := tablewriter.NewTable(os.Stdout)
		t.Header([]string{"ID", "Version", "State", "Load Type", "Loaded", "Path"})

		for _, loader := range loaders {
			md := loader.Metadata()

			loaded := "-"
			if !loader.LoadedAt().IsZero() {
				loaded = formatAge(time.Since(loader.LoadedAt())) + " ago"
			}

			_ = t.Append([]string{
				md.ID,
				md.Version,
				loader.State().String(),
				md.LoadType.String(),
				loaded,
				loader.Path(),
			})
		}

		return t.Render()
	})
}

func runPluginsInfo(_ *cobra.Command, args []string) error {
	return withLauncher(func(l *launcher) error {
		loader, ok := l.provider.Get(args[0])
		if !ok {
			return errors.Wrapf(plugin.ErrUnknownPlugin, "%q", args[0])
		}

		md := loader.Metadata()

		fmt.Printf("%s %s (%s)\n", md.ID, md.Version, md.Name)
		fmt.Printf("  %s\n", md.Description)
		fmt.Printf("  iid:       %s\n", md.IID)
		fmt.Printf("  state:     %s\n", loader.State())
		fmt.Printf("  load type: %s\n", md.LoadType)

		if md.License != "" {
			fmt.Printf("  license:   %s\n", md.License)
		}

		if md.URL != "" {
			fmt.Printf("  url:       %s\n", md.URL)
		}

		if len(md.Authors) > 0 {
			fmt.Printf("  authors:   %s\n", strings.Join(md.Authors, ", "))
		}

		if len(md.BinaryDependencies) > 0 {
			fmt.Printf("  requires:  %s\n", strings.Join(md.BinaryDependencies, ", "))
		}

		for _, validationErr := range loader.ValidationErrors() {
			fmt.Printf("  invalid:   %v\n", validationErr)
		}

		if loader.LastError() != "" {
			fmt.Printf("  error:     %s\n", loader.LastError())
		}

		return nil
	})
}

func formatAge(d time.Duration) string {
	return durafmt.Parse(d.Truncate(time.Second)).LimitFirstN(durationDisplayUnits).String()
}
