// Package btscontext holds the cross-cutting engineering concerns this
// core needs at startup beyond the radio-protocol stack itself:
// configuration, logging, mDNS service discovery, and the rotating
// statistics dump filename.
//
// Configuration is a structured YAML document (`gopkg.in/yaml.v3`)
// rather than a line-oriented legacy grammar, since the timer/threshold
// surface is naturally a flat key/value tree.
package btscontext

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses YAML scalars like "4s" or "30s" into a time.Duration,
// since yaml.v3 has no built-in support for Go's duration syntax.
type Duration time.Duration

// UnmarshalYAML accepts either a Go duration string ("4s") or a bare
// integer (seconds), so a config author used to a flat seconds value
// is not forced into Go duration syntax.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err == nil && value.ShortTag() != "!!int" {
		parsed, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("btscontext: parse duration %q: %w", s, err)
		}
		*d = Duration(parsed)
		return nil
	}
	var secs int
	if err := value.Decode(&secs); err != nil {
		return fmt.Errorf("btscontext: duration must be a string or integer seconds: %w", err)
	}
	*d = Duration(time.Duration(secs) * time.Second)
	return nil
}

// Config is the immutable set of timer/threshold constants this core
// reads once at startup: "GSM.Timer.*", "GSM.CellOptions.RADIO-LINK-TIMEOUT",
// "GSM.Handover.*", "GSM.MS.*", "GSM.RACH.TxInteger", "GSM.Channels.SDCCHReserve".
type Config struct {
	GSM struct {
		Timer struct {
			T3101 Duration `yaml:"T3101"`
			T3105 Duration `yaml:"T3105"`
			T3109 Duration `yaml:"T3109"`
			T3113 Duration `yaml:"T3113"`
			T3212 Duration `yaml:"T3212"`
		} `yaml:"Timer"`

		CellOptions struct {
			RadioLinkTimeout int `yaml:"RADIO-LINK-TIMEOUT"`
		} `yaml:"CellOptions"`

		CellSelection struct {
			NECI int `yaml:"NECI"` // 1 enables the new establishment causes of GSM 04.08 §10.5.2.25a
		} `yaml:"CellSelection"`

		Handover struct {
			Margin  int `yaml:"Margin"`
			Ny1     int `yaml:"Ny1"`
			RXLevDL struct {
				Target      int `yaml:"Target"`
				History     int `yaml:"History"`
				Margin      int `yaml:"Margin"`
				PenaltyTime int `yaml:"PenaltyTime"`
			} `yaml:"RXLEV_DL"`
		} `yaml:"Handover"`

		MS struct {
			Power struct {
				Min     int `yaml:"Min"`
				Max     int `yaml:"Max"`
				Damping int `yaml:"Damping"`
			} `yaml:"Power"`
			TA struct {
				Max     int `yaml:"Max"`
				Damping int `yaml:"Damping"`
			} `yaml:"TA"`
		} `yaml:"MS"`

		RACH struct {
			TxInteger int `yaml:"TxInteger"`
		} `yaml:"RACH"`

		Channels struct {
			SDCCHReserve int `yaml:"SDCCHReserve"`
		} `yaml:"Channels"`
	} `yaml:"GSM"`

	// Control holds the call-control-plane switches the radio-resource
	// front-end reads; VEA assigns a TCH directly to a mobile-originated
	// call (very early assignment) when NECI is on.
	Control struct {
		VEA bool `yaml:"VEA"`
	} `yaml:"Control"`

	// CellIdentity, LAC, and ARFCN are advertised over mDNS by
	// Advertise; they are not consumed by any timer/threshold check.
	CellIdentity int `yaml:"CellIdentity"`
	LAC          int `yaml:"LAC"`
	ARFCN        int `yaml:"ARFCN"`

	// StatsFilePattern is a strftime(3)-style pattern (e.g.
	// "stats-%Y%m%d-%H%M%S.log") used by StatsFilename.
	StatsFilePattern string `yaml:"StatsFilePattern"`
}

// Load reads and parses a YAML config document from path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("btscontext: read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("btscontext: parse config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the invariant states explicitly: T3109
// must exceed RADIO-LINK-TIMEOUT * 0.48s, since T3109 is only armed
// after the radio-link counter has already run out.
func (c *Config) Validate() error {
	minT3109 := time.Duration(float64(c.GSM.CellOptions.RadioLinkTimeout)*0.48*1000) * time.Millisecond
	if time.Duration(c.GSM.Timer.T3109) <= minT3109 {
		return fmt.Errorf("btscontext: T3109 (%s) must exceed RADIO-LINK-TIMEOUT*0.48s (%s)", time.Duration(c.GSM.Timer.T3109), minT3109)
	}
	return nil
}
