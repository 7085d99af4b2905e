package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/reelview/hlsget/internal/output"
)

func newVariantsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "variants [URL]",
		Short: "Show the quality variants a master playlist advertises",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			coord, err := newCoordinator(output.QuietListener{})
			if err != nil {
				output.PrintError(fmt.Sprintf("Error loading download registry: %v", err))
				os.Exit(1)
			}
			variants := coord.Variants(args[0])
			output.PrintHeader("Available variants")
			for _, v := range variants {
				line := fmt.Sprintf("  %s %s", output.StyleSymbols["bullet"], v.Label)
				if v.Bandwidth > 0 {
					line += output.FDebug(fmt.Sprintf("  %d kbps", v.Bandwidth/1000))
				}
				fmt.Println(line)
				fmt.Println(output.FDebug("      " + v.URL))
			}
		},
	}
	return cmd
}
