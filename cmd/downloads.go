package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/reelview/hlsget/internal/coordinator"
	"github.com/reelview/hlsget/internal/output"
	"github.com/reelview/hlsget/internal/utils"
)

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List downloads from the registry",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			coord := mustCoordinator()
			records := coord.List()
			if len(records) == 0 {
				output.PrintInfo("No downloads recorded")
				return
			}
			output.PrintHeader("Downloads")
			for _, rec := range records {
				printRecord(rec)
			}
		},
	}
	return cmd
}

func newRemoveCmd() *cobra.Command {
	var deleteFile bool

	cmd := &cobra.Command{
		Use:   "remove [ID]",
		Short: "Remove a download from the registry",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			coord := mustCoordinator()
			coord.Remove(args[0], deleteFile)
			output.PrintSuccess(fmt.Sprintf("Removed %s", args[0]))
		},
	}

	cmd.Flags().BoolVar(&deleteFile, "delete-file", false, "Also delete the downloaded file")
	return cmd
}

func newClearCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear finished, failed, and cancelled downloads from the registry",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			coord := mustCoordinator()
			coord.ClearTerminal()
			output.PrintSuccess("Cleared finished downloads")
		},
	}
	return cmd
}

func mustCoordinator() *coordinator.Coordinator {
	coord, err := newCoordinator(output.QuietListener{})
	if err != nil {
		output.PrintError(fmt.Sprintf("Error loading download registry: %v", err))
		os.Exit(1)
	}
	return coord
}

func printRecord(rec coordinator.Record) {
	var status string
	switch rec.Status {
	case coordinator.StatusComplete:
		status = output.FSuccess(string(rec.Status))
	case coordinator.StatusError:
		status = output.FError(string(rec.Status))
	default:
		status = output.FInfo(string(rec.Status))
	}
	started := time.UnixMilli(rec.StartTime).Format("2006-01-02 15:04:05")
	fmt.Printf("  %s %s %s %s\n", output.StyleSymbols["bullet"], rec.ID, status, output.FDebug(started))
	fmt.Printf("    %s\n", output.FDebug(rec.Filename))
	if rec.FilePath != "" {
		detail := rec.FilePath
		if rec.DownloadedBytes > 0 {
			detail += " (" + utils.FormatBytes(uint64(rec.DownloadedBytes)) + ")"
		}
		if rec.EstimatedQuality != "" {
			detail += fmt.Sprintf(" %s @ %.1f Mbps", rec.EstimatedQuality, rec.BitrateMbps)
		}
		fmt.Printf("    %s\n", output.FDetail(detail))
	}
	if rec.Error != "" {
		fmt.Printf("    %s\n", output.FError(rec.Error))
	}
}
