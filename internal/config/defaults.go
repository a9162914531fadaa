package config

const (
	defaultConfigPath = "~/.config/beatcut/config.toml"
	defaultDataDir    = "~/.local/share/beatcut"
	defaultWorkDir    = "~/.cache/beatcut/work"
	defaultOutputDir  = "~/Videos/beatcut"
	defaultLogDir     = "~/.local/share/beatcut/logs"
	defaultMusicDir   = "~/Music"
	defaultLogFormat  = "console"
	defaultLogLevel   = "info"

	defaultSampleRate    = 22050
	defaultFrameSize     = 2048
	defaultHopLength     = 512
	defaultMinBPM        = 60
	defaultMaxBPM        = 200
	defaultStartBPM      = 120
	defaultTightness     = 100
	defaultMinDuration   = 2.0
	defaultSegmentMode   = "beat"
	defaultTargetSegment = 1.0
	defaultSensitivity   = 1.0

	defaultStrategy       = "weighted"
	defaultCooldown       = 4
	defaultMinClipSeconds = 1.0

	defaultBeatsPerCut     = 4
	defaultHighEnergy      = 0.66
	defaultLowEnergy       = 0.33
	defaultMinBeatsPerCut  = 1
	defaultMaxBeatsPerCut  = 16
	defaultEdgeGuard       = 0.1
	defaultShortClipPolicy = "replace"

	defaultWidth          = 1280
	defaultHeight         = 720
	defaultFPS            = 30
	defaultVideoCodec     = "libx264"
	defaultPreset         = "veryfast"
	defaultCRF            = 23
	defaultAudioCodec     = "aac"
	defaultAudioBitrate   = "192k"
	defaultContainer      = "mp4"
	defaultTimeoutSeconds = 3600
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:   defaultDataDir,
			WorkDir:   defaultWorkDir,
			OutputDir: defaultOutputDir,
			LogDir:    defaultLogDir,
			MusicDir:  defaultMusicDir,
		},
		Analysis: Analysis{
			SampleRate:         defaultSampleRate,
			FrameSize:          defaultFrameSize,
			HopLength:          defaultHopLength,
			MinBPM:             defaultMinBPM,
			MaxBPM:             defaultMaxBPM,
			StartBPM:           defaultStartBPM,
			Tightness:          defaultTightness,
			MinDurationSeconds: defaultMinDuration,
			SegmentMode:        defaultSegmentMode,
			TargetSegment:      defaultTargetSegment,
			Sensitivity:        defaultSensitivity,
		},
		Selection: Selection{
			Strategy:       defaultStrategy,
			Cooldown:       defaultCooldown,
			MinClipSeconds: defaultMinClipSeconds,
		},
		Alignment: Alignment{
			BeatsPerCut:     defaultBeatsPerCut,
			EnergyAdaptive:  true,
			HighEnergy:      defaultHighEnergy,
			LowEnergy:       defaultLowEnergy,
			MinBeatsPerCut:  defaultMinBeatsPerCut,
			MaxBeatsPerCut:  defaultMaxBeatsPerCut,
			EdgeGuard:       defaultEdgeGuard,
			ShortClipPolicy: defaultShortClipPolicy,
		},
		Encoding: Encoding{
			FFmpegBinary:   "ffmpeg",
			FFprobeBinary:  "ffprobe",
			Width:          defaultWidth,
			Height:         defaultHeight,
			FPS:            defaultFPS,
			VideoCodec:     defaultVideoCodec,
			Preset:         defaultPreset,
			CRF:            defaultCRF,
			AudioCodec:     defaultAudioCodec,
			AudioBitrate:   defaultAudioBitrate,
			Container:      defaultContainer,
			TimeoutSeconds: defaultTimeoutSeconds,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
