package config

const (
	defaultDownloadDir     = "~/Videos/bilifav"
	defaultStateDir        = "~/.local/share/bilifav"
	defaultLogDir          = "~/.local/share/bilifav/logs"
	defaultQuality         = "1080P"
	defaultMinFreeSpaceGiB = 1
	defaultFFmpegBinary    = "ffmpeg"
	defaultFFmpegTimeout   = 1800
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DownloadDir: defaultDownloadDir,
			StateDir:    defaultStateDir,
			LogDir:      defaultLogDir,
		},
		Download: Download{
			Quality:         defaultQuality,
			MinFreeSpaceGiB: defaultMinFreeSpaceGiB,
		},
		FFmpeg: FFmpeg{
			Binary:         defaultFFmpegBinary,
			TimeoutSeconds: defaultFFmpegTimeout,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
