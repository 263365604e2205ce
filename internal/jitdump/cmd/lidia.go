package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"jitdump/internal/elfx"
)

var lidiaCmd = &cobra.Command{
	Use:   "lidia <elf> <out>",
	Short: "Write a lidia symbol table for an ELF binary",
	Long: `Write the function table of an ELF binary to a lidia file. The file
keeps naming addresses with dump --lidia after the binary is stripped.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := elfx.CreateLidia(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(lidiaCmd)
}
