package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/luma-launcher/luma/internal/query"
	"github.com/luma-launcher/luma/pkg/extension"
)

var watchFlag bool

func init() {
	rootCmd.Flags().BoolVar(
		&watchFlag,
		"watch",
		false,
		"Watch the plugin directories and pick up new modules",
	)
}

// runInteractive reads queries from stdin, one per line. A line starting
// with "!" activates a match of the previous query, "!!" a fallback.
func runInteractive(_ *cobra.Command, _ []string) error {
	launcher, err := newLauncher()
	if err != nil {
		return err
	}
	defer launcher.shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if watchFlag {
		go func() {
			if watchErr := launcher.provider.Watch(ctx, func() {
				if loadErr := launcher.provider.LoadAll(); loadErr != nil {
					launcher.log.Error("hot load failed", "error", loadErr.Error())
				}
			}); watchErr != nil {
				launcher.log.Error("watch unavailable", "error", watchErr.Error())
			}
		}()
	}

	fmt.Println("luma interactive prompt. Empty line or Ctrl-D quits.")

	var last *query.Query

	scanner := bufio.NewScanner(os.Stdin)

	fmt.Print("> ")

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			break
		}

		if strings.HasPrefix(line, "!") {
			if err := activate(last, line); err != nil {
				fmt.Fprintf(os.Stderr, "activation failed: %v\n", err)
			}

			fmt.Print("> ")

			continue
		}

		if last != nil {
			last.Cancel()
		}

		last = launcher.engine.BuildQuery(line)
		last.Run()
		<-last.Done()

		printResults(last)
		fmt.Print("> ")
	}

	if last != nil {
		last.Cancel()
	}

	return scanner.Err()
}

// activate parses "!N" or "!!N" and runs the default action of the
// addressed result.
func activate(q *query.Query, line string) error {
	if q == nil {
		return errors.New("no previous query")
	}

	if rest, ok := strings.CutPrefix(line, "!!"); ok {
		index, err := strconv.Atoi(strings.TrimSpace(rest))
		if err != nil {
			return err
		}

		return q.ActivateFallback(index, 0)
	}

	index, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "!")))
	if err != nil {
		return err
	}

	return q.ActivateMatch(index, 0)
}

func printResults(q *query.Query) {
	if q.IsTriggered() && q.Synopsis() != "" {
		fmt.Printf("[%s%s]\n", q.Trigger(), q.Synopsis())
	}

	matches := q.Matches()
	if len(matches) == 0 {
		fmt.Println("no matches")
	}

	for i, item := range matches {
		printItem(i, item)
	}

	fallbacks := q.Fallbacks()
	if len(fallbacks) > 0 {
		fmt.Println("fallbacks:")

		for i, item := range fallbacks {
			printItem(i, item)
		}
	}
}

func printItem(index int, item extension.Item) {
	if item.Subtext() != "" {
		fmt.Printf("%3d  %s  (%s)\n", index, item.Text(), item.Subtext())

		return
	}

	fmt.Printf("%3d  %s\n", index, item.Text())
}
