package ffmpeg

import (
	"slices"
	"testing"
)

func TestProfileArgsDefaults(t *testing.T) {
	t.Parallel()
	args := Profile{}.Args("rtsp://cam/1")

	wantPairs := [][2]string{
		{"-rtsp_transport", "tcp"},
		{"-fflags", "nobuffer"},
		{"-flags", "low_delay"},
		{"-i", "rtsp://cam/1"},
		{"-f", "mpegts"},
		{"-codec:v", "mpeg1video"},
		{"-s", "640x480"},
		{"-b:v", "1000k"},
		{"-bf", "0"},
		{"-q:v", "5"},
		{"-r", "25"},
		{"-flush_packets", "1"},
	}
	for _, pair := range wantPairs {
		i := slices.Index(args, pair[0])
		if i < 0 || i+1 >= len(args) {
			t.Fatalf("missing flag %q in %v", pair[0], args)
		}
		if args[i+1] != pair[1] {
			t.Errorf("%s: got %q, want %q", pair[0], args[i+1], pair[1])
		}
	}

	if !slices.Contains(args, "-an") {
		t.Error("audio should be disabled with -an")
	}
	if args[len(args)-1] != "pipe:1" {
		t.Errorf("last arg: got %q, want pipe:1", args[len(args)-1])
	}
}

func TestProfileArgsOverrides(t *testing.T) {
	t.Parallel()
	p := Profile{Resolution: "1280x720", Bitrate: "2500k", FrameRate: 30}
	args := p.Args("rtsp://cam/2")

	if i := slices.Index(args, "-s"); i < 0 || args[i+1] != "1280x720" {
		t.Errorf("resolution not applied: %v", args)
	}
	if i := slices.Index(args, "-b:v"); i < 0 || args[i+1] != "2500k" {
		t.Errorf("bitrate not applied: %v", args)
	}
	if i := slices.Index(args, "-r"); i < 0 || args[i+1] != "30" {
		t.Errorf("frame rate not applied: %v", args)
	}
}

func TestProfileArgsInputBeforeOutput(t *testing.T) {
	t.Parallel()
	args := Profile{}.Args("rtsp://cam/3")

	in := slices.Index(args, "-i")
	out := slices.Index(args, "-f")
	if in < 0 || out < 0 || in > out {
		t.Errorf("input flags must precede output flags: %v", args)
	}
}
