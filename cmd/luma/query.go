package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var activateIndex int

var queryCmd = &cobra.Command{
	Use:   "query <input>",
	Short: "Run a single query and print the results",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().IntVar(
		&activateIndex,
		"activate",
		-1,
		"Activate the default action of the given match index",
	)
}

func runQuery(_ *cobra.Command, args []string) error {
	launcher, err := newLauncher()
	if err != nil {
		return err
	}
	defer launcher.shutdown()

	q := launcher.engine.BuildQuery(strings.Join(args, " "))
	q.Run()
	<-q.Done()

	printResults(q)

	if activateIndex >= 0 {
		return q.ActivateMatch(activateIndex, 0)
	}

	return nil
}
