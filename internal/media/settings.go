package media

// Settings holds the encoding choices and asset locations shared by all operations.
type Settings struct {
	// FFmpegPath is the ffmpeg binary. Default: "ffmpeg" (found via PATH).
	FFmpegPath string
	// FFprobePath is the ffprobe binary. Default: "ffprobe".
	FFprobePath string
	// VideoCodec is used whenever an operation re-encodes video. Default: "libx264".
	VideoCodec string
	// AudioCodec is used whenever an operation re-encodes audio. Default: "aac".
	AudioCodec string
	// AudioBitrate applies to MergeWithTransition output. Default: "192k".
	AudioBitrate string
	// OverlaySize is the square edge used when an overlay image has neither
	// width nor height. Default: 1080.
	OverlaySize int
	// LUTDir is where the .cube files live. Default: "" (working directory).
	LUTDir string
	// Transitions selects the transition keyword table. Default: MappingLegacy.
	Transitions TransitionMapping
	// FallbackOffset is the transition offset in seconds used when the first
	// input cannot be probed. Default: 1.
	FallbackOffset float64
}

// DefaultSettings returns the stock encoding settings.
func DefaultSettings() Settings {
	return Settings{
		FFmpegPath:     "ffmpeg",
		FFprobePath:    "ffprobe",
		VideoCodec:     "libx264",
		AudioCodec:     "aac",
		AudioBitrate:   "192k",
		OverlaySize:    1080,
		Transitions:    MappingLegacy,
		FallbackOffset: 1,
	}
}

// withFallbacks fills every zero field of d from DefaultSettings.
func (d Settings) withFallbacks() Settings {
	def := DefaultSettings()
	if d.FFmpegPath == "" {
		d.FFmpegPath = def.FFmpegPath
	}
	if d.FFprobePath == "" {
		d.FFprobePath = def.FFprobePath
	}
	if d.VideoCodec == "" {
		d.VideoCodec = def.VideoCodec
	}
	if d.AudioCodec == "" {
		d.AudioCodec = def.AudioCodec
	}
	if d.AudioBitrate == "" {
		d.AudioBitrate = def.AudioBitrate
	}
	if d.OverlaySize <= 0 {
		d.OverlaySize = def.OverlaySize
	}
	if !d.Transitions.Valid() {
		d.Transitions = def.Transitions
	}
	if d.FallbackOffset <= 0 {
		d.FallbackOffset = def.FallbackOffset
	}
	return d
}
