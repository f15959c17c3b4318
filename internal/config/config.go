package config

import (
	"path/filepath"
	"time"

	"github.com/hashicorp/hcl"
	"github.com/juju/errors"
	"github.com/temoto/acudp/acudp"
	"github.com/temoto/acudp/helpers"
	tele_config "github.com/temoto/acudp/internal/tele/config"
	"github.com/temoto/acudp/log2"
)

const (
	DefaultHost          = "127.0.0.1"
	DefaultMode          = "car"
	DefaultClientID      = "acudp"
	DefaultTopicPrefix   = "ac"
	DefaultMetricsListen = ":9091"
)

type Config struct {
	// includeSeen contains absolute paths to prevent include loops
	includeSeen map[string]struct{}
	// only used for Unmarshal, do not access
	XXX_Include []Source `hcl:"include"`

	Server struct {
		Host              string `hcl:"host"`
		Mode              string `hcl:"mode"`
		NetworkTimeoutSec int    `hcl:"network_timeout_sec"`
		LogDebug          bool   `hcl:"log_debug"`
	} `hcl:"server"`

	Tele tele_config.Config `hcl:"tele"`

	Metrics struct {
		Enabled bool   `hcl:"enable"`
		Listen  string `hcl:"listen"`
	} `hcl:"metrics"`
}

type Source struct {
	Name     string `hcl:"name,key"`
	Optional bool   `hcl:"optional"`
}

// Normalize applies defaults and validates values.
func (c *Config) Normalize() error {
	if c.Server.Host == "" {
		c.Server.Host = DefaultHost
	}
	if c.Server.Mode == "" {
		c.Server.Mode = DefaultMode
	}
	if _, err := acudp.ParseConnectionType(c.Server.Mode); err != nil {
		return errors.Annotate(err, "config server.mode")
	}
	if c.Server.NetworkTimeoutSec < 0 {
		return errors.NotValidf("config server.network_timeout_sec=%d", c.Server.NetworkTimeoutSec)
	}
	if c.Tele.ClientID == "" {
		c.Tele.ClientID = DefaultClientID
	}
	if c.Tele.TopicPrefix == "" {
		c.Tele.TopicPrefix = DefaultTopicPrefix
	}
	if c.Tele.Enabled && c.Tele.MqttBroker == "" {
		return errors.NotValidf("config tele.mqtt_broker empty")
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = DefaultMetricsListen
	}
	return nil
}

func (c *Config) ServerMode() acudp.ConnectionType {
	mode, _ := acudp.ParseConnectionType(c.Server.Mode)
	return mode
}

func (c *Config) NetworkTimeout() time.Duration {
	return helpers.IntSecondDefault(c.Server.NetworkTimeoutSec, acudp.DefaultNetworkTimeout)
}

func (c *Config) read(log *log2.Log, fs FullReader, source Source, errs *[]error) {
	norm := fs.Normalize(source.Name)
	if _, ok := c.includeSeen[norm]; ok {
		*errs = append(*errs, errors.Errorf("config duplicate source=%s", source.Name))
		return
	}
	log.Debugf("config reading source='%s' path=%s", source.Name, norm)
	c.includeSeen[norm] = struct{}{}

	bs, err := fs.ReadAll(norm)
	if bs == nil && err == nil {
		if !source.Optional {
			*errs = append(*errs, errors.NotFoundf("config required name=%s path=%s", source.Name, norm))
		}
		return
	}
	if err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config source=%s", source.Name))
		return
	}

	if err = hcl.Unmarshal(bs, c); err != nil {
		*errs = append(*errs, errors.Annotatef(err, "config unmarshal source=%s", source.Name))
		return
	}

	var includes []Source
	includes, c.XXX_Include = c.XXX_Include, nil
	for _, include := range includes {
		includeNorm := fs.Normalize(include.Name)
		if _, ok := c.includeSeen[includeNorm]; ok {
			*errs = append(*errs, errors.Errorf("config include loop: from=%s include=%s", source.Name, include.Name))
			continue
		}
		c.read(log, fs, include, errs)
	}
}

// ReadConfig merges sources in order, later values win.
// With OsFullReader, includes are relative to directory of first name.
func ReadConfig(log *log2.Log, fs FullReader, names ...string) (*Config, error) {
	if len(names) == 0 {
		return nil, errors.NotValidf("ReadConfig() without names")
	}

	if osfs, ok := fs.(*OsFullReader); ok {
		dir, name := filepath.Split(names[0])
		if dir != "" {
			osfs.SetBase(dir)
			names[0] = name
		}
	}
	c := &Config{
		includeSeen: make(map[string]struct{}),
	}
	errs := make([]error, 0, 8)
	for _, name := range names {
		c.read(log, fs, Source{Name: name}, &errs)
	}
	if err := helpers.FoldErrors(errs...); err != nil {
		return c, err
	}
	return c, c.Normalize()
}

func MustReadConfig(log *log2.Log, fs FullReader, names ...string) *Config {
	c, err := ReadConfig(log, fs, names...)
	if err != nil {
		log.Fatal(errors.ErrorStack(err))
	}
	return c
}
