package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gridley-labs/fanout/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the fanout version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("fanout version %s\n", version.Get())
	},
}
