package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

var handlersCmd = &cobra.Command{
	Use:   "handlers",
	Short: "List query handlers and their triggers",
	RunE:  runHandlers,
}

func init() {
	rootCmd.AddCommand(handlersCmd)
}

func runHandlers(_ *cobra.Command, _ []string) error {
	return withLauncher(func(l *launcher) error {
		entries := l.engine.Handlers()
		if len(entries) == 0 {
			fmt.Println("no query handlers registered")

			return nil
		}

		t := tablewriter.NewTable(os.Stdout)
		t.Header([]string{"ID", "Trigger", "Enabled", "Active", "Synopsis"})

		for _, entry := range entries {
			_ = t.Append([]string{
				entry.Handler.ID(),
				strconv.Quote(entry.Trigger),
				fmt.Sprintf("%t", entry.Enabled),
				fmt.Sprintf("%t", entry.Active),
				entry.Handler.Synopsis(),
			})
		}

		if err := t.Render(); err != nil {
			return err
		}

		for trigger, losers := range l.engine.Conflicts() {
			fmt.Printf("conflict on %q: %s (shadowed)\n", trigger, strings.Join(losers, ", "))
		}

		return nil
	})
}
