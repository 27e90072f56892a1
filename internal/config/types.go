package config

// Config is the full on-disk configuration (JSON or YAML).
//
// All durations are Go duration strings (e.g. "500ms", "3s", "1m").
type Config struct {
	Logging   LoggingConfig    `json:"logging"`
	Devices   DevicesConfig    `json:"devices"`
	Dispatch  DispatchConfig   `json:"dispatch"`
	Scheduler SchedulerConfig  `json:"scheduler"`
	Simulator *SimulatorConfig `json:"simulator,omitempty"`
	Storage   *StorageConfig   `json:"storage,omitempty"`

	// Templates seeds extra custom templates at startup, keyed by template
	// id. They behave exactly like templates saved through the editor:
	// in-memory only, deletable.
	Templates map[string]TemplateSeed `json:"templates,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// DevicesConfig sizes the simulated worker fleet.
type DevicesConfig struct {
	Count int `json:"count,omitempty"` // default 4
}

// DispatchConfig tunes the dispatch/response engine.
type DispatchConfig struct {
	RatePerSec int `json:"rate_per_sec,omitempty"` // default 10

	// ResponseLatency is the simulated transmission delay before a worker
	// response is recorded. Default "1s".
	ResponseLatency string `json:"response_latency,omitempty"`

	// StatusReset is how long transient device status lines stay up.
	// Default "3s".
	StatusReset string `json:"status_reset,omitempty"`
}

type SchedulerConfig struct {
	// Timezone for interval jobs (IANA TZ). Empty means local.
	Timezone string `json:"timezone,omitempty"`
}

// SimulatorConfig controls the optional worker auto-responder: every
// Interval it answers pending devices with a random canned reply.
type SimulatorConfig struct {
	Enabled  bool   `json:"enabled"`
	Interval string `json:"interval,omitempty"` // default "15s"
}

// StorageConfig controls the optional audit trail.
//
// Example:
//
//	"storage": { "driver": "file", "path": "./crewpager_audit" }
type StorageConfig struct {
	Driver      string `json:"driver"`
	Path        string `json:"path"`
	BusyTimeout string `json:"busy_timeout,omitempty"` // sqlite only
}

// TemplateSeed is a template definition as written in the config file.
type TemplateSeed struct {
	Name      string   `json:"name"`
	Icon      string   `json:"icon,omitempty"`
	Type      string   `json:"type,omitempty"` // info|warning|emergency
	Text      string   `json:"text"`
	Responses []string `json:"responses,omitempty"`
}
