package assemble

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sync"

	"github.com/rs/zerolog/log"
)

var (
	probeOnce      sync.Once
	ffmpegPresent  bool
	errRemuxFailed = errors.New("remux failed")
)

// RemuxAvailable probes for ffmpeg once per process and caches the result.
func RemuxAvailable() bool {
	probeOnce.Do(func() {
		err := exec.Command("ffmpeg", "-version").Run()
		ffmpegPresent = err == nil
		log.Debug().Str("op", "assemble/remux").Bool("available", ffmpegPresent).Msg("Probed for ffmpeg")
	})
	return ffmpegPresent
}

// Remux rewraps the container without re-encoding. Success means a zero exit
// status and an output file that actually exists; anything else is reported
// as a failure for the caller to fall back on.
func Remux(inputPath, outputPath string) error {
	cmd := exec.Command(
		"ffmpeg",
		"-i", inputPath,
		"-c", "copy",
		"-movflags", "+faststart",
		"-y",
		outputPath,
	)
	log.Debug().Str("op", "assemble/remux").Msgf("Executing ffmpeg command: %s", cmd.String())
	output, err := cmd.CombinedOutput()
	if err != nil {
		log.Warn().Str("op", "assemble/remux").Msgf("FFmpeg output:\n%s", string(output))
		return fmt.Errorf("ffmpeg error: %v", err)
	}
	if _, err := os.Stat(outputPath); err != nil {
		return errRemuxFailed
	}
	return nil
}
