package cmd

import (
	"fmt"
	u "net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/reelview/hlsget/internal/coordinator"
	"github.com/reelview/hlsget/internal/fetch"
	"github.com/reelview/hlsget/internal/output"
	"github.com/reelview/hlsget/internal/pipeline"
	"github.com/reelview/hlsget/internal/utils"
)

var (
	outputDir     string
	storePath     string
	timeout       time.Duration
	kaTimeout     time.Duration
	userAgent     string
	proxyURL      string
	proxyUsername string
	proxyPassword string
	headers       []string
	segmentDelay  time.Duration
	noRemux       bool
	debug         bool

	globalHTTPConfig utils.HTTPClientConfig
)

var HlsgetVersion = "dev"

var rootCmd = &cobra.Command{
	Use:     "hlsget",
	Short:   "Hlsget downloads HLS streams into single playable files",
	Version: HlsgetVersion,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		utils.InitLogger(debug)
		if userAgent == "randomize" {
			userAgent = utils.GetRandomUserAgent()
		}
		// Check if proxy URL contains auth
		parsedProxy, err := u.Parse(proxyURL)
		if err == nil && parsedProxy.User != nil && proxyUsername == "" {
			proxyUsername = parsedProxy.User.Username()
			if password, set := parsedProxy.User.Password(); set {
				proxyPassword = password
			}
			parsedProxy.User = nil
			proxyURL = parsedProxy.String()
		}
		globalHTTPConfig = utils.HTTPClientConfig{
			Timeout:       timeout,
			KATimeout:     kaTimeout,
			ProxyURL:      proxyURL,
			ProxyUsername: proxyUsername,
			ProxyPassword: proxyPassword,
			UserAgent:     userAgent,
			Headers:       utils.ParseHeaderArgs(headers),
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newCoordinator wires the download stack behind one listener: HTTP client,
// fetcher, pipeline, registry store, coordinator.
func newCoordinator(listener coordinator.Listener) (*coordinator.Coordinator, error) {
	client := utils.NewHLSHTTPClient(globalHTTPConfig)
	fetcher := fetch.New(client)
	pipe := pipeline.New(fetcher, pipeline.Config{
		OutputDir:    outputDir,
		SegmentDelay: segmentDelay,
		RemuxEnabled: !noRemux,
	})
	store := coordinator.NewStore(storePath)
	return coordinator.New(pipe, fetcher, store, listener)
}

func defaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hlsget/downloads.json"
	}
	return filepath.Join(home, ".hlsget", "downloads.json")
}

// newListener picks the progress surface: a live lipgloss display normally,
// structured logs only when debugging (the redraws would fight the log
// output). The returned stop func is a no-op in debug mode.
func newListener() (coordinator.Listener, func()) {
	if debug {
		return output.QuietListener{}, func() {}
	}
	display := output.NewDisplay()
	display.StartDisplay()
	return display, display.StopDisplay
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputDir, "output-dir", "d", ".", "Directory for downloaded files")
	rootCmd.PersistentFlags().StringVar(&storePath, "store", defaultStorePath(), "Path to the download registry JSON file")
	rootCmd.PersistentFlags().DurationVarP(&timeout, "timeout", "t", utils.DefaultTimeout, "Connection timeout (eg. 5s, 10m)")
	rootCmd.PersistentFlags().DurationVarP(&kaTimeout, "keep-alive-timeout", "k", utils.DefaultKATimeout, "Keep-alive timeout for client (eg. 10s, 1m, 80s)")
	rootCmd.PersistentFlags().StringVarP(&userAgent, "user-agent", "a", "", "User agent ('randomize' picks from a browser pool)")
	rootCmd.PersistentFlags().StringVarP(&proxyURL, "proxy", "p", "", "HTTP/HTTPS proxy URL (e.g., proxy.example.com:8080)")
	rootCmd.PersistentFlags().StringVar(&proxyUsername, "proxy-username", "", "Proxy username (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringVar(&proxyPassword, "proxy-password", "", "Proxy password (if not provided in proxy URL)")
	rootCmd.PersistentFlags().StringArrayVarP(&headers, "header", "H", []string{}, "Custom headers (like 'Referer: https://example.com'); can be specified multiple times")
	rootCmd.PersistentFlags().DurationVar(&segmentDelay, "delay", utils.DefaultSegmentDelay, "Pause between segment fetches")
	rootCmd.PersistentFlags().BoolVar(&noRemux, "no-remux", false, "Keep the merged transport stream, skip the ffmpeg remux")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newGetCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newVariantsCmd())
	rootCmd.AddCommand(newListCmd())
	rootCmd.AddCommand(newRemoveCmd())
	rootCmd.AddCommand(newClearCmd())
}
