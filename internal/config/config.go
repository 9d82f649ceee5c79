// Package config loads the ingestion node's configuration (spec §6): CLI
// flags first, then an optional JSON file layered on top, the same
// two-stage precedence the teacher's radar binary uses for its tuning
// config (flags for operational knobs, a JSON file for anything the
// operator wants to version-control).
package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
)

// Config holds every option spec §6's configuration table names.
type Config struct {
	// CAN path (component A). CANInterface empty disables it.
	CANInterface string `json:"can_interface,omitempty"`

	// UDP cube path (component B). EthPort zero disables it.
	EthIP   string `json:"eth_ip,omitempty"`
	EthPort int    `json:"eth_port,omitempty"`

	// Clustering and tracking (components C and D).
	ClusteringEnabled bool       `json:"clustering_enabled"`
	ClusterEpsilon    float64    `json:"cluster_epsilon"`
	ClusterMinPoints  int        `json:"cluster_min_points"`
	ClusterParamScale [4]float64 `json:"cluster_param_scale"`

	TrackerMinHits int `json:"tracker_min_hits"`
	TrackerMaxAge  int `json:"tracker_max_age"`
	TrackerMaxLost int `json:"tracker_max_lost"`

	// Orchestrator (component E).
	TopicPrefix string `json:"topic_prefix,omitempty"`

	// Ambient.
	MetricsListen string `json:"metrics_listen,omitempty"`
}

// Defaults returns the baseline configuration: clustering off, tracker
// lifecycle thresholds matching track.DefaultParams, no CAN/UDP path
// selected (the caller must opt into at least one).
func Defaults() Config {
	return Config{
		ClusteringEnabled: false,
		ClusterEpsilon:    1.0,
		ClusterMinPoints:  2,
		ClusterParamScale: [4]float64{1, 1, 1, 1},
		TrackerMinHits:    3,
		TrackerMaxAge:     5,
		TrackerMaxLost:    1,
		TopicPrefix:       "radar",
		MetricsListen:     ":9090",
	}
}

// Flags binds a Config's fields onto fs, starting from the values already
// present in cfg (typically Defaults()). Call fs.Parse after this.
func Flags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.CANInterface, "can-interface", cfg.CANInterface, "CAN device name (e.g. can0); empty disables the CAN path")
	fs.StringVar(&cfg.EthIP, "eth-ip", cfg.EthIP, "UDP bind address for the radar cube stream")
	fs.IntVar(&cfg.EthPort, "eth-port", cfg.EthPort, "UDP bind port for the radar cube stream; 0 disables the cube path")
	fs.BoolVar(&cfg.ClusteringEnabled, "clustering-enabled", cfg.ClusteringEnabled, "enable DBSCAN clustering and tracking")
	fs.Float64Var(&cfg.ClusterEpsilon, "cluster-epsilon", cfg.ClusterEpsilon, "DBSCAN epsilon in scaled feature space")
	fs.IntVar(&cfg.ClusterMinPoints, "cluster-min-points", cfg.ClusterMinPoints, "DBSCAN minimum points per cluster")
	fs.IntVar(&cfg.TrackerMinHits, "tracker-min-hits", cfg.TrackerMinHits, "hits required before a track is confirmed")
	fs.IntVar(&cfg.TrackerMaxAge, "tracker-max-age", cfg.TrackerMaxAge, "missed frames a confirmed track tolerates before removal")
	fs.IntVar(&cfg.TrackerMaxLost, "tracker-max-lost", cfg.TrackerMaxLost, "missed frames an unconfirmed track tolerates before removal")
	fs.StringVar(&cfg.TopicPrefix, "topic-prefix", cfg.TopicPrefix, "prefix prepended to all outbound topic names")
	fs.StringVar(&cfg.MetricsListen, "metrics-listen", cfg.MetricsListen, "listen address for the /metrics and /ready HTTP endpoints")
}

// LoadFile overlays JSON fields from path onto cfg. Fields absent from the
// file are left untouched, so a partial override file is safe; this
// mirrors the teacher's TuningConfig pointer-field overlay, collapsed to
// plain fields here since every option in this node's config is always
// meaningful (there is no "unset means fall through to a runtime default"
// distinction once Defaults() has already been applied).
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg.Validate()
}

// Validate checks cross-field invariants that flags and JSON decoding
// can't enforce on their own.
func (c *Config) Validate() error {
	if c.CANInterface == "" && c.EthPort == 0 {
		return fmt.Errorf("config: at least one of can_interface or eth_port must be set")
	}
	if c.ClusteringEnabled {
		if c.ClusterEpsilon <= 0 {
			return fmt.Errorf("config: cluster_epsilon must be positive, got %v", c.ClusterEpsilon)
		}
		if c.ClusterMinPoints < 1 {
			return fmt.Errorf("config: cluster_min_points must be at least 1, got %d", c.ClusterMinPoints)
		}
	}
	if c.TrackerMinHits < 1 {
		return fmt.Errorf("config: tracker_min_hits must be at least 1, got %d", c.TrackerMinHits)
	}
	if c.TrackerMaxAge < 0 || c.TrackerMaxLost < 0 {
		return fmt.Errorf("config: tracker_max_age and tracker_max_lost must be non-negative")
	}
	return nil
}
