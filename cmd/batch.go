package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/reelview/hlsget/internal/coordinator"
	"github.com/reelview/hlsget/internal/output"
)

type BatchEntry struct {
	Link    string `yaml:"link"`
	Name    string `yaml:"name,omitempty"`
	Quality string `yaml:"quality,omitempty"`
}

type BatchFile struct {
	Streams []BatchEntry `yaml:"streams"`
}

func newBatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "batch [YAML_FILE]",
		Short: "Download multiple streams listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error reading YAML file: %v\n", err)
				os.Exit(1)
			}
			var batchFile BatchFile
			if err := yaml.Unmarshal(data, &batchFile); err != nil {
				fmt.Fprintf(os.Stderr, "Error parsing YAML file: %v\n", err)
				os.Exit(1)
			}
			entries := make([]BatchEntry, 0, len(batchFile.Streams))
			for _, entry := range batchFile.Streams {
				if entry.Link == "" {
					fmt.Fprintf(os.Stderr, "Warning: Empty link in streams section, skipping...\n")
					continue
				}
				if entry.Name == "" {
					entry.Name = inferFilename(entry.Link)
				}
				entries = append(entries, entry)
			}
			if len(entries) == 0 {
				fmt.Fprintf(os.Stderr, "No valid entries found in the batch file\n")
				os.Exit(1)
			}

			listener, stop := newListener()
			coord, err := newCoordinator(listener)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error loading download registry: %v", err))
				os.Exit(1)
			}
			ids := make([]string, 0, len(entries))
			for _, entry := range entries {
				ids = append(ids, coord.Start(entry.Link, entry.Name, entry.Quality))
			}
			for _, id := range ids {
				<-coord.Done(id)
			}
			stop()
			failed := false
			for _, rec := range coord.List() {
				for _, id := range ids {
					if rec.ID == id && rec.Status != coordinator.StatusComplete {
						failed = true
					}
				}
			}
			if failed {
				os.Exit(1)
			}
		},
	}
	return cmd
}
