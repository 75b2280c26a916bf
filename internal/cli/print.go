package cli

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mingerfan/ftrace-dev/pkg/ftrace"
	"github.com/mingerfan/ftrace-dev/pkg/ftrace/boundary"
)

func newPrintCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "print <text>",
		Short: "Write text through the print_string path",
		Long: `Print writes its argument exactly as print_string would, including the
text policy check. With --hex the argument is decoded from hex first, which
allows feeding bytes that are not valid UTF-8.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload := []byte(args[0])
			if isHex, _ := cmd.Flags().GetBool("hex"); isHex {
				b, err := hex.DecodeString(strings.ReplaceAll(args[0], " ", ""))
				if err != nil {
					return fmt.Errorf("decode hex argument: %w", err)
				}
				payload = b
			}
			policy, _ := cmd.Flags().GetString("policy")
			newline, _ := cmd.Flags().GetBool("newline")

			h := ftrace.NewHost(ftrace.WithOutput(cmd.OutOrStdout()), ftrace.WithLogger(newLogger(cmd)))
			if err := h.ApplyConfig(ftrace.Config{TextPolicy: policy, AppendNewline: newline}); err != nil {
				return err
			}
			return ftrace.RemapError(h.Print(boundary.BufferOf(payload)))
		},
	}
	cmd.Flags().String("policy", "reject", "invalid UTF-8 handling: reject or replace")
	cmd.Flags().Bool("newline", false, "append a newline")
	cmd.Flags().Bool("hex", false, "decode the argument from hex")
	return cmd
}
