package config

import "os"

const (
	defaultConfigPath          = "~/.config/pipecopy/config.toml"
	defaultStateDir            = "~/.local/state/pipecopy"
	defaultLogDir              = "~/.local/state/pipecopy/logs"
	defaultLedgerFile          = "ledger.db"
	defaultReadBufferSize      = 4096
	defaultQueueCapacity       = 10
	defaultExitToken           = "exit"
	defaultCopyFileModeText    = "0644"
	defaultCopyFileMode        = os.FileMode(0o644)
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultLogRetentionDays    = 14
	minReadBufferSize          = 64
	maxReadBufferSize          = 1 << 20
	defaultLedgerEnabled       = true
	defaultLedgerRetentionDays = 90
	defaultTransportDetectBOM  = true
	defaultControlStdinEnabled = true
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Transport: Transport{
			ReadBufferSize: defaultReadBufferSize,
			DetectBOM:      defaultTransportDetectBOM,
		},
		Copy: Copy{
			FileMode: defaultCopyFileModeText,
		},
		Queue: Queue{
			Capacity: defaultQueueCapacity,
		},
		Control: Control{
			ExitToken: defaultExitToken,
			Stdin:     defaultControlStdinEnabled,
		},
		Paths: Paths{
			StateDir: defaultStateDir,
			LogDir:   defaultLogDir,
		},
		Ledger: Ledger{
			Enabled:       defaultLedgerEnabled,
			RetentionDays: defaultLedgerRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
