// Package quality estimates effective video quality from realized transfer
// throughput. The thresholds here grade measured bitrate and are deliberately
// not the same as the advertised-bandwidth buckets used for variant labels.
package quality

// Sample is one bitrate estimate with its derived quality label.
type Sample struct {
	BitrateMbps float64 `json:"bitrateMbps"`
	Label       string  `json:"label"`
}

// Estimate computes the running bitrate from bytes transferred over the media
// duration covered so far. It reports false when no estimate can be made
// (zero or negative duration); callers keep their previous sample.
func Estimate(bytes int64, seconds float64) (Sample, bool) {
	if seconds <= 0 {
		return Sample{}, false
	}
	mbps := float64(bytes) * 8 / seconds / 1000000
	return Sample{BitrateMbps: mbps, Label: labelFor(mbps)}, true
}

func labelFor(mbps float64) string {
	switch {
	case mbps >= 8:
		return "1080p"
	case mbps >= 4:
		return "720p"
	case mbps >= 2:
		return "480p"
	case mbps >= 1:
		return "360p"
	default:
		return "240p"
	}
}
