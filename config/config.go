// ─────────────────────────────────────────────────────────────────────────────
// [Filename]: config.go — Runtime configuration record
//
// Purpose:
//   - Produces the configuration consumed by the server lifecycle: port,
//     journal directory, ring wait strategy, single-threaded mode.
//   - Three layers, later wins: compiled defaults → optional JSON file →
//     environment overrides.
//
// Notes:
//   - The JSON layer is decoded with sonnet; the file is looked up at
//     $DIGITS_CONFIG or ./digits_server.json and is optional.
//   - Environment names mirror the original runtime properties:
//     SERVER_PORT, JOURNAL_DIRECTORY, JOURNAL_WAIT_STRATEGY,
//     SERVER_SINGLE_THREADED_EVENT_LOOP.
//   - Malformed values degrade to defaults with a warning; configuration
//     never crashes the server.
// ─────────────────────────────────────────────────────────────────────────────

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"main/constants"
	"main/debug"

	"github.com/sugawarayuuta/sonnet"
)

// Config is the §6 configuration record.
type Config struct {
	Port                    int    `json:"port"`
	JournalDirectory        string `json:"journal_directory"`
	JournalWaitStrategy     string `json:"journal_wait_strategy"`
	SingleThreadedEventLoop bool   `json:"single_threaded_event_loop"`
}

// Default returns the compiled-in configuration: port 4000, journal in the
// OS temp directory, Block wait strategy, multi-threaded scheduling.
func Default() Config {
	return Config{
		Port:                constants.DefaultPort,
		JournalDirectory:    os.TempDir(),
		JournalWaitStrategy: "Block",
	}
}

// JournalPath resolves the full journal file location.
func (c Config) JournalPath() string {
	return filepath.Join(c.JournalDirectory, constants.JournalFileName)
}

// Load assembles the effective configuration from all three layers.
func Load() Config {
	cfg := Default()
	cfg.applyFile()
	cfg.applyEnv()
	cfg.sanitize()
	return cfg
}

// applyFile overlays the optional JSON configuration file. A missing file
// is normal; a malformed one is logged and skipped.
func (c *Config) applyFile() {
	path := strings.TrimSpace(os.Getenv("DIGITS_CONFIG"))
	if path == "" {
		path = "digits_server.json"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			debug.DropError("CONFIG: read "+path, err)
		}
		return
	}
	if err := sonnet.Unmarshal(data, c); err != nil {
		debug.DropError("CONFIG: parse "+path, err)
	}
}

// applyEnv overlays the environment variables, highest precedence.
func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv("SERVER_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Port = port
		} else {
			debug.DropMessage("CONFIG", "ignoring non-numeric SERVER_PORT "+v)
		}
	}
	if v := strings.TrimSpace(os.Getenv("JOURNAL_DIRECTORY")); v != "" {
		c.JournalDirectory = v
	}
	if v := strings.TrimSpace(os.Getenv("JOURNAL_WAIT_STRATEGY")); v != "" {
		c.JournalWaitStrategy = v
	}
	if v := strings.TrimSpace(os.Getenv("SERVER_SINGLE_THREADED_EVENT_LOOP")); v != "" {
		c.SingleThreadedEventLoop = v == "1" || strings.EqualFold(v, "true")
	}
}

// sanitize clamps out-of-range values back to usable defaults.
func (c *Config) sanitize() {
	if c.Port <= 0 || c.Port > 65535 {
		debug.DropMessage("CONFIG", "port out of range, using "+strconv.Itoa(constants.DefaultPort))
		c.Port = constants.DefaultPort
	}
	if strings.TrimSpace(c.JournalDirectory) == "" {
		c.JournalDirectory = os.TempDir()
	}
	switch strings.ToLower(strings.TrimSpace(c.JournalWaitStrategy)) {
	case "block", "sleep", "yield", "busy":
	default:
		debug.DropMessage("CONFIG", "unknown wait strategy "+c.JournalWaitStrategy+", using Block")
		c.JournalWaitStrategy = "Block"
	}
}
