package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func addRoutesCommandTo(parent *cobra.Command) {
	cmd := &cobra.Command{
		Use:   "routes",
		Short: "Print the route table of the configured specification.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			e, err := setup(cmd)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATH\tOPERATION")
			for _, r := range e.api.Routes() {
				method := r.Method
				if method == "" {
					method = "*"
				}
				op := r.OperationID
				if op == "" {
					op = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", method, r.Path, op)
			}
			return w.Flush()
		},
	}
	parent.AddCommand(cmd)
}
