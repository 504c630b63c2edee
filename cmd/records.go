package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sarchlab/doccode/codes"
)

func newListCommand() *cobra.Command {
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the issued codes.",
		Long: "`list` prints every issued code in allocation order. The " +
			"--division, --area and --doc flags narrow the list down.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			division, _ := cmd.Flags().GetString("division")
			area, _ := cmd.Flags().GetString("area")
			doc, _ := cmd.Flags().GetString("doc")

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DIVISION\tAREA\tDOC\tID\tCODE")

			for _, r := range e.allocator.Records() {
				if !matches(r.Key, division, area, doc) {
					continue
				}

				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					r.Division, r.Area, r.Doc, r.ID, r.Code)
			}

			return w.Flush()
		},
	}

	listCmd.Flags().String("division", "", "Only show this division")
	listCmd.Flags().String("area", "", "Only show this area")
	listCmd.Flags().String("doc", "", "Only show this document type")

	return listCmd
}

func matches(key codes.Key, division, area, doc string) bool {
	return (division == "" || key.Division == division) &&
		(area == "" || key.Area == area) &&
		(doc == "" || key.Doc == doc)
}

func newNextCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "next DIVISION AREA DOC",
		Short: "Issue the next code for a division, area and document type.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			record, err := e.allocator.Allocate(args[0], args[1], args[2])
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), record.Code)

			return nil
		},
	}
}

func newCountersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "counters",
		Short: "Show the last sequence number of every key.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}
			defer e.close()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "DIVISION\tAREA\tDOC\tLAST")

			for _, c := range e.allocator.SortedCounters() {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
					c.Division, c.Area, c.Doc, codes.FormatSequence(c.Last))
			}

			return w.Flush()
		},
	}
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "doccode %s\n", Version)
		},
	}
}
