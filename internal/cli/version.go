package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace"
)

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ftrace %s (commit %s, %s %s/%s)\n",
				ftrace.WrapperVersion(), ftrace.Commit(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
		},
	}
}
