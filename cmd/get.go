package cmd

import (
	"fmt"
	u "net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/reelview/hlsget/internal/coordinator"
	"github.com/reelview/hlsget/internal/output"
)

func newGetCmd() *cobra.Command {
	var filename string
	var quality string

	cmd := &cobra.Command{
		Use:   "get [URL]",
		Short: "Download one HLS stream into a single file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			streamURL := args[0]
			if _, err := u.Parse(streamURL); err != nil {
				output.PrintError("Invalid URL format")
				os.Exit(1)
			}
			if filename == "" {
				filename = inferFilename(streamURL)
			}
			listener, stop := newListener()
			coord, err := newCoordinator(listener)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error loading download registry: %v", err))
				os.Exit(1)
			}
			id := coord.Start(streamURL, filename, quality)
			<-coord.Done(id)
			stop()
			for _, rec := range coord.List() {
				if rec.ID == id && rec.Status != coordinator.StatusComplete {
					os.Exit(1)
				}
			}
		},
	}

	cmd.Flags().StringVarP(&filename, "filename", "o", "", "Display name for the download (default: derived from the URL)")
	cmd.Flags().StringVarP(&quality, "quality", "q", "", "Preferred variant label (eg. 720p); highest bandwidth when absent")
	return cmd
}

// inferFilename derives a display name from the last meaningful path element
// of the stream URL.
func inferFilename(streamURL string) string {
	parsed, err := u.Parse(streamURL)
	if err != nil {
		return "stream"
	}
	segments := strings.Split(strings.Trim(parsed.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		name := segments[i]
		name = strings.TrimSuffix(name, ".m3u8")
		name = strings.TrimSuffix(name, ".m3u")
		if name != "" && name != "index" && name != "playlist" && name != "master" {
			return name
		}
	}
	return "stream"
}
