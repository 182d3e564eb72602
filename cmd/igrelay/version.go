package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("igrelay %s\n", version)
		fmt.Printf("  commit:   %s\n", gitCommit)
		fmt.Printf("  built:    %s\n", buildDate)
		fmt.Printf("  go:       %s\n", runtime.Version())
		fmt.Printf("  os/arch:  %s/%s\n", runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
