package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace/elfsym"
)

func newSymbolsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "symbols <elf>",
		Short: "List the function symbols the tracer would load from an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := elfsym.Open(0, args[0])
			if err != nil {
				return err
			}
			match, _ := cmd.Flags().GetString("match")

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "# %s: %d functions, %#x-%#x\n", r.Name, r.Len(), r.Start, r.End)
			fmt.Fprintln(tw, "ID\tSTART\tEND\tSIZE\tNAME")
			for _, fn := range r.Funcs() {
				if match != "" && !strings.Contains(fn.Name, match) {
					continue
				}
				fmt.Fprintf(tw, "%d\t%#x\t%#x\t%d\t%s\n", fn.ID, fn.Start, fn.End, fn.End-fn.Start, fn.Name)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().String("match", "", "only list functions whose name contains this substring")
	return cmd
}
