package main

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"merchbatch/internal/items"
)

func newItemsCommand() *cobra.Command {
	itemsCmd := &cobra.Command{
		Use:         "items",
		Short:       "Inspect item lists",
		Annotations: map[string]string{"skipConfigLoad": "true"},
	}

	var limit int
	previewCmd := &cobra.Command{
		Use:   "preview FILE",
		Short: "Parse an item list locally and show what a run would process",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := items.Load(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			shown := list
			if limit > 0 && len(shown) > limit {
				shown = shown[:limit]
			}
			fmt.Fprint(out, renderTable(
				[]string{"#", "Title", "Image", "Attributes"},
				previewRows(shown),
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft},
			))
			fmt.Fprintln(out)
			if len(shown) < len(list) {
				fmt.Fprintf(out, "Showing %d of %s\n", len(shown), pluralize(len(list), "item"))
				return nil
			}
			fmt.Fprintf(out, "%s ready\n", pluralize(len(list), "item"))
			return nil
		},
	}
	previewCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum rows to display (0 for all)")

	itemsCmd.AddCommand(previewCmd)
	return itemsCmd
}

func previewRows(list []items.Item) [][]string {
	rows := make([][]string, 0, len(list))
	for _, item := range list {
		rows = append(rows, []string{
			strconv.Itoa(item.Index),
			item.Label(),
			item.ResourcePath,
			formatAttributes(item.Attributes),
		})
	}
	return rows
}

func formatAttributes(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for key := range attrs {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+"="+attrs[key])
	}
	return truncate(strings.Join(parts, ", "), errorColumnWidth)
}
