package main

import (
	"fmt"
	"runtime"
	"strings"

	"github.com/aretw0/resscene"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of resscene",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "resscene version %s %s\n",
			color.CyanString(strings.TrimSpace(resscene.Version)),
			color.HiBlackString("(%s %s/%s)", runtime.Version(), runtime.GOOS, runtime.GOARCH))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
