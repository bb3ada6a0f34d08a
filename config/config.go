// Package config defines the configuration of a costmap client.
package config

import (
	"encoding/json"
	"math"
	"os"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"go.viam.com/utils"

	"go.viam.com/costmapclient/footprint"
	"go.viam.com/costmapclient/logging"
)

// Defaults applied to unset fields.
const (
	DefaultRobotBaseFrame        = "base_link"
	DefaultCostmapTopic          = "costmap"
	DefaultCostmapUpdatesTopic   = "costmap_updates"
	DefaultFootprintTopic        = "footprint"
	DefaultTFTopic               = "tf"
	DefaultTFStaticTopic         = "tf_static"
	DefaultTransformToleranceSec = 0.3
	DefaultRobotRadius           = 0.46
	DefaultPollIntervalMs        = 100
	DefaultTFCacheSec            = 10.0
)

// Config describes how a costmap client finds its inputs and interprets them.
type Config struct {
	// GlobalFrame pins the frame of the grid. When empty the frame of the first snapshot is used.
	GlobalFrame         string `json:"global_frame,omitempty"`
	RobotBaseFrame      string `json:"robot_base_frame"`
	CostmapTopic        string `json:"costmap_topic"`
	CostmapUpdatesTopic string `json:"costmap_updates_topic"`
	FootprintTopic      string `json:"footprint_topic"`
	TFTopic             string `json:"tf_topic"`
	TFStaticTopic       string `json:"tf_static_topic"`

	TransformToleranceSec float64 `json:"transform_tolerance_sec"`
	TFCacheSec            float64 `json:"tf_cache_sec"`

	// RobotRadius is nil when unset; zero configures a point robot.
	RobotRadius *float64     `json:"robot_radius,omitempty"`
	Footprint   [][2]float64 `json:"footprint,omitempty"`
	// FootprintVertices approximates a circular robot of RobotRadius with a polygon of that many
	// vertices when no footprint is given. Zero leaves the footprint empty.
	FootprintVertices int     `json:"footprint_vertices,omitempty"`
	FootprintPadding  float64 `json:"footprint_padding"`

	PollIntervalMs int `json:"poll_interval_ms"`
	// InitTimeoutSec bounds how long construction waits for the first map and pose. Zero waits
	// forever.
	InitTimeoutSec float64 `json:"init_timeout_sec"`

	LogLevel string `json:"log_level,omitempty"`
}

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	setString := func(field *string, value string) {
		if *field == "" {
			*field = value
		}
	}
	setString(&c.RobotBaseFrame, DefaultRobotBaseFrame)
	setString(&c.CostmapTopic, DefaultCostmapTopic)
	setString(&c.CostmapUpdatesTopic, DefaultCostmapUpdatesTopic)
	setString(&c.FootprintTopic, DefaultFootprintTopic)
	setString(&c.TFTopic, DefaultTFTopic)
	setString(&c.TFStaticTopic, DefaultTFStaticTopic)
	if c.TransformToleranceSec == 0 {
		c.TransformToleranceSec = DefaultTransformToleranceSec
	}
	if c.TFCacheSec == 0 {
		c.TFCacheSec = DefaultTFCacheSec
	}
	if c.RobotRadius == nil {
		radius := DefaultRobotRadius
		c.RobotRadius = &radius
	}
	if c.PollIntervalMs == 0 {
		c.PollIntervalMs = DefaultPollIntervalMs
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate(path string) error {
	if c.RobotBaseFrame == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "robot_base_frame")
	}
	if c.CostmapTopic == "" {
		return utils.NewConfigValidationFieldRequiredError(path, "costmap_topic")
	}
	if c.GlobalFrame != "" && c.GlobalFrame == c.RobotBaseFrame {
		return utils.NewConfigValidationError(path, errors.New("global_frame and robot_base_frame must differ"))
	}
	if c.TransformToleranceSec <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("transform_tolerance_sec must be positive, got %v", c.TransformToleranceSec))
	}
	if c.TFCacheSec <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("tf_cache_sec must be positive, got %v", c.TFCacheSec))
	}
	if c.RobotRadius != nil && *c.RobotRadius < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("robot_radius must not be negative, got %v", *c.RobotRadius))
	}
	if c.FootprintVertices != 0 && c.FootprintVertices < 3 {
		return utils.NewConfigValidationError(path, errors.Errorf("footprint_vertices must be 0 or at least 3, got %d", c.FootprintVertices))
	}
	if c.PollIntervalMs <= 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("poll_interval_ms must be positive, got %d", c.PollIntervalMs))
	}
	if c.InitTimeoutSec < 0 {
		return utils.NewConfigValidationError(path, errors.Errorf("init_timeout_sec must not be negative, got %v", c.InitTimeoutSec))
	}
	if len(c.Footprint) > 0 && len(c.Footprint) < 3 {
		return utils.NewConfigValidationError(path, errors.Errorf("footprint needs at least 3 points, got %d", len(c.Footprint)))
	}
	for i, pt := range c.Footprint {
		if math.IsNaN(pt[0]) || math.IsNaN(pt[1]) || math.IsInf(pt[0], 0) || math.IsInf(pt[1], 0) {
			return utils.NewConfigValidationError(path, errors.Errorf("footprint point %d is not finite", i))
		}
	}
	if c.LogLevel != "" {
		if _, err := logging.LevelFromString(c.LogLevel); err != nil {
			return utils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// TransformTolerance is the longest a pose lookup may wait, and the oldest a pose may be.
func (c *Config) TransformTolerance() time.Duration {
	return time.Duration(c.TransformToleranceSec * float64(time.Second))
}

// TFCacheDuration is how much transform history is kept.
func (c *Config) TFCacheDuration() time.Duration {
	return time.Duration(c.TFCacheSec * float64(time.Second))
}

// PollInterval is the period of the readiness checks during construction.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// InitTimeout is the longest construction waits for readiness. Zero means no limit.
func (c *Config) InitTimeout() time.Duration {
	return time.Duration(c.InitTimeoutSec * float64(time.Second))
}

// Radius returns the configured robot radius, DefaultRobotRadius when unset.
func (c *Config) Radius() float64 {
	if c.RobotRadius == nil {
		return DefaultRobotRadius
	}
	return *c.RobotRadius
}

// StaticFootprint returns the configured footprint with padding applied. Without explicit points
// it falls back to a FootprintVertices-gon of the robot radius, and to nil when neither is set.
func (c *Config) StaticFootprint() footprint.Polygon {
	var p footprint.Polygon
	switch {
	case len(c.Footprint) > 0:
		p = make(footprint.Polygon, len(c.Footprint))
		for i, pt := range c.Footprint {
			p[i] = r2.Point{X: pt[0], Y: pt[1]}
		}
	case c.FootprintVertices >= 3:
		p = footprint.FromRadius(c.Radius(), c.FootprintVertices)
	default:
		return nil
	}
	if c.FootprintPadding != 0 {
		p = footprint.Padded(p, c.FootprintPadding)
	}
	return p
}

// Level returns the configured log level, INFO when unset.
func (c *Config) Level() logging.Level {
	level, err := logging.LevelFromString(c.LogLevel)
	if err != nil {
		return logging.INFO
	}
	return level
}

// FromAttributes decodes a generic attribute map into a validated Config with defaults applied.
func FromAttributes(attrs map[string]interface{}) (*Config, error) {
	var conf Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &conf,
		WeaklyTypedInput: true,
		ErrorUnused:      true,
	})
	if err != nil {
		return nil, errors.Wrap(err, "unable to create config decoder")
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrap(err, "unable to decode config attributes")
	}
	conf.ApplyDefaults()
	if err := conf.Validate("costmap_client"); err != nil {
		return nil, err
	}
	return &conf, nil
}

// Load reads a JSON config file.
func Load(path string) (*Config, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "unable to read config file %q", path)
	}
	var attrs map[string]interface{}
	if err := json.Unmarshal(data, &attrs); err != nil {
		return nil, errors.Wrapf(err, "unable to parse config file %q", path)
	}
	return FromAttributes(attrs)
}
