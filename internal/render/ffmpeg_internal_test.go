package render

import (
	"slices"
	"strings"
	"testing"

	"beatcut/internal/library"
	"beatcut/internal/timeline"
)

func TestTrimArgs(t *testing.T) {
	params := Params{Width: 1280, Height: 720, FPS: 30, VideoCodec: "libx264", Preset: "veryfast", CRF: 23}
	entry := timeline.EditEntry{
		Clip:      library.Clip{ID: "c01", Path: "/clips/a.mp4", Duration: 0.5},
		SourceIn:  0,
		SourceOut: 0.5,
		Duration:  1.25,
		Loop:      true,
	}
	args := trimArgs(entry, params, "/work/seg-0000.mkv")
	joined := strings.Join(args, " ")

	if !strings.Contains(joined, "-stream_loop -1 -ss 0.000 -i /clips/a.mp4 -t 1.250") {
		t.Fatalf("unexpected input args: %s", joined)
	}
	wantFilter := "scale=1280:720:force_original_aspect_ratio=decrease,pad=1280:720:(ow-iw)/2:(oh-ih)/2,setsar=1,fps=30"
	if !slices.Contains(args, wantFilter) {
		t.Fatalf("missing filter %q in %s", wantFilter, joined)
	}
	if args[len(args)-1] != "/work/seg-0000.mkv" {
		t.Fatalf("output must be the last argument: %s", joined)
	}

	entry.Loop = false
	if slices.Contains(trimArgs(entry, params, "out.mkv"), "-stream_loop") {
		t.Fatal("non-looping entry should not loop its input")
	}
}

func TestMuxArgs(t *testing.T) {
	args := muxArgs("video.mkv", "track.flac", 61.5, Params{AudioBitrate: "192k"}, "/out/run.mp4")
	joined := strings.Join(args, " ")
	for _, want := range []string{"-map 0:v:0 -map 1:a:0", "-c:a aac -b:a 192k", "-t 61.500", "-movflags +faststart"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("expected %q in %s", want, joined)
		}
	}
	mkv := strings.Join(muxArgs("v", "a", 1, Params{}, "/out/run.mkv"), " ")
	if strings.Contains(mkv, "faststart") {
		t.Fatalf("faststart only applies to mp4: %s", mkv)
	}
}

func TestConcatListEscapesQuotes(t *testing.T) {
	got := concatList([]string{"/w/seg-0000.mkv", "/w/it's.mkv"})
	want := "file '/w/seg-0000.mkv'\nfile '/w/it'\\''s.mkv'\n"
	if got != want {
		t.Fatalf("concatList = %q, want %q", got, want)
	}
}

func TestProgressWriter(t *testing.T) {
	var got []float64
	w := &progressWriter{expected: 2, notify: func(f float64) { got = append(got, f) }}
	_, _ = w.Write([]byte("frame=10\nout_time_us=500"))
	_, _ = w.Write([]byte("000\nout_time_us=4000000\nprogress=end\n"))
	want := []float64{0.25, 1, 1}
	if !slices.Equal(got, want) {
		t.Fatalf("progress = %v, want %v", got, want)
	}
}

func TestTailBufferKeepsSuffix(t *testing.T) {
	tb := &tailBuffer{max: 4}
	_, _ = tb.Write([]byte("abc"))
	_, _ = tb.Write([]byte("defg"))
	if tb.String() != "defg" {
		t.Fatalf("tail = %q", tb.String())
	}
}
