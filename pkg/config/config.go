package config

import (
	"flag"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// ParseConfigFlags parses command-line flags and returns them as a Flags
// struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", "", "HTTP listen address (host:port)")
	dbPtr := flag.String("db", "", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// Load reads a YAML config file, applies env overrides and defaults, and
// returns the effective config. A missing file is not an error; env and
// defaults still apply.
func Load(path string) (*Config, error) {
	var cfg Config
	if b, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, err
		}
	} else if !os.IsNotExist(err) {
		return nil, err
	}
	applyEnv(&cfg)
	cfg.ApplyDefaults()
	return &cfg, nil
}

// applyEnv overlays CHATSYNC_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CHATSYNC_ADDR"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("CHATSYNC_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("CHATSYNC_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("CHATSYNC_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// ApplyFlags overlays explicitly-set command-line flags; flags win over
// both file and env.
func ApplyFlags(cfg *Config, fl Flags) {
	if fl.Set["addr"] && fl.Addr != "" {
		host, port, ok := splitHostPort(fl.Addr)
		if ok {
			cfg.Server.Address = host
			cfg.Server.Port = port
		}
	}
	if fl.Set["db"] && fl.DB != "" {
		cfg.Storage.DBPath = fl.DB
	}
}

func splitHostPort(addr string) (string, int, bool) {
	for i := len(addr) - 1; i >= 0; i-- {
		if addr[i] == ':' {
			p, err := strconv.Atoi(addr[i+1:])
			if err != nil {
				return "", 0, false
			}
			host := addr[:i]
			if host == "" {
				host = "0.0.0.0"
			}
			return host, p, true
		}
	}
	return "", 0, false
}
