package hls

// Variant is one rendition entry from a master playlist.
type Variant struct {
	URL       string `json:"url"`
	Bandwidth int    `json:"bandwidth"`
	Label     string `json:"label"`
}

// Segment is one media segment from a variant playlist. Order matters: the
// playlist order is the concatenation order.
type Segment struct {
	URL      string
	Duration float64
}

type StreamType string

const (
	StreamHLS     StreamType = "hls"
	StreamDASH    StreamType = "dash"
	StreamMP4     StreamType = "mp4"
	StreamUnknown StreamType = "unknown"
)
