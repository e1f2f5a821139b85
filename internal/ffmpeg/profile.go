package ffmpeg

import "strconv"

// Profile holds the configurable ceilings of the fixed transcode
// invocation. Zero-value fields fall back to the defaults below.
type Profile struct {
	Resolution string
	Bitrate    string
	FrameRate  int
}

// Defaults for the transcode profile, chosen for low-latency playback
// in a browser-side MPEG1 decoder.
const (
	DefaultResolution = "640x480"
	DefaultBitrate    = "1000k"
	DefaultFrameRate  = 25
)

// Args builds the full ffmpeg argument list for relaying sourceURL:
// TCP transport for RTSP, minimal buffering, MPEG-TS container with
// mpeg1video, no audio, immediate packet flushing, output on stdout.
func (p Profile) Args(sourceURL string) []string {
	resolution := p.Resolution
	if resolution == "" {
		resolution = DefaultResolution
	}
	bitrate := p.Bitrate
	if bitrate == "" {
		bitrate = DefaultBitrate
	}
	frameRate := p.FrameRate
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}

	return []string{
		"-rtsp_transport", "tcp",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-i", sourceURL,
		"-f", "mpegts",
		"-codec:v", "mpeg1video",
		"-s", resolution,
		"-b:v", bitrate,
		"-bf", "0",
		"-q:v", "5",
		"-r", strconv.Itoa(frameRate),
		"-an",
		"-flush_packets", "1",
		"pipe:1",
	}
}
