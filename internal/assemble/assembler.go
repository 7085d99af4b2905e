// Package assemble concatenates downloaded segments into a single container
// file and optionally remuxes it to MKV with an external ffmpeg.
package assemble

import (
	"bufio"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/reelview/hlsget/internal/utils"
)

// AssemblyError is a concatenation I/O failure (disk full, permission
// denied). Remux failures are deliberately not in this category; they degrade
// to the raw concatenated file.
type AssemblyError struct {
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("error assembling output: %v", e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

type Assembler struct {
	remuxEnabled bool
	log          zerolog.Logger
}

func New(remuxEnabled bool) *Assembler {
	return &Assembler{
		remuxEnabled: remuxEnabled,
		log:          utils.GetLogger("assemble"),
	}
}

// Assemble writes the ordered segment buffers into basePath+".ts" and then
// attempts a remux to basePath+".mkv". Transport-stream segments concatenate
// losslessly, so the intermediate file is already a valid container; the
// remux only rewraps it for broader player compatibility. When ffmpeg is
// unavailable or fails, the concatenated file is renamed instead.
func (a *Assembler) Assemble(segments [][]byte, basePath string) (string, error) {
	tsPath := basePath + ".ts"
	mkvPath := basePath + ".mkv"

	if err := a.concat(segments, tsPath); err != nil {
		return "", &AssemblyError{Err: err}
	}
	var total int64
	for _, seg := range segments {
		total += int64(len(seg))
	}
	a.log.Debug().Int("segments", len(segments)).Str("size", utils.FormatBytes(uint64(total))).Msg("Segments merged")

	if a.remuxEnabled && RemuxAvailable() {
		if err := Remux(tsPath, mkvPath); err == nil {
			os.Remove(tsPath)
			a.log.Debug().Str("output", mkvPath).Msg("Remux complete")
			return mkvPath, nil
		}
		a.log.Warn().Str("file", tsPath).Msg("Remux failed, keeping transport stream")
	}
	if err := os.Rename(tsPath, mkvPath); err == nil {
		return mkvPath, nil
	}
	return tsPath, nil
}

func (a *Assembler) concat(segments [][]byte, outputPath string) error {
	outFile, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer outFile.Close()
	writer := bufio.NewWriter(outFile)
	for _, segment := range segments {
		if _, err := writer.Write(segment); err != nil {
			return err
		}
	}
	return writer.Flush()
}
