package testsupport

// FakeFFmpegScript imitates a successful ffmpeg run: it writes a few bytes to
// the output path (the last argument) and reports progress on stdout. It
// answers -version with a version banner.
const FakeFFmpegScript = `for last; do :; done
case "$last" in
  pipe:*) exit 0 ;;
  -version) echo "ffmpeg version 7.1-test Copyright (c) 2000-2024"; exit 0 ;;
esac
printf 'frame=1\nout_time_us=500000\nprogress=continue\nprogress=end\n'
printf 'encoded' > "$last"
`

// CrashingFFmpegScript imitates an encoder killed mid-run: it writes part of
// the output, then kills itself with SIGKILL.
const CrashingFFmpegScript = `for last; do :; done
printf 'partial' > "$last"
kill -9 $$
`

// SlowFFmpegScript never finishes on its own; used for timeout and
// cancellation tests.
const SlowFFmpegScript = `for last; do :; done
printf 'partial' > "$last"
sleep 30
`

// FakeFFprobeScript reports a 12.5 second 1920x1080 h264 clip for any input.
const FakeFFprobeScript = `cat <<'JSON'
{"streams":[{"index":0,"codec_type":"video","codec_name":"h264","width":1920,"height":1080,"avg_frame_rate":"30/1"}],"format":{"duration":"12.5","size":"4096"}}
JSON
`
