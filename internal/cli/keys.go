package cli

import (
	"github.com/spf13/cobra"
)

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Committee key utilities",
}

var keysGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate a fresh BLS committee key pair",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().GenerateKey(cmd.Context())
	},
}

var keysListCmd = &cobra.Command{
	Use:   "list",
	Short: "List committee keys recorded in the audit store",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().ListKeys(cmd.Context())
	},
}

func init() {
	keysCmd.AddCommand(keysGenerateCmd)
	keysCmd.AddCommand(keysListCmd)
}
