// Package config loads the optional evidence-s3 configuration file.
//
// The configuration file supplies defaults for the AWS session and the evidence bucket. Every
// value can be overridden by the equivalent command line flag.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

type Config struct {
	AWS      AWS      `yaml:"aws"`
	Evidence Evidence `yaml:"evidence"`
	Log      Log      `yaml:"log"`
}

type AWS struct {
	Credentials string `yaml:"credentials"`
	Profile     string `yaml:"profile"`
	Region      string `yaml:"region"`
	Endpoint    string `yaml:"endpoint"`
	PathStyle   bool   `yaml:"path-style"`
}

type Evidence struct {
	Bucket string `yaml:"bucket"`
	Family string `yaml:"family"`
	Keys   string `yaml:"keys"`
}

type Log struct {
	Level string `yaml:"level"`
}

func NewConfig() *Config {
	return &Config{}
}

// Load reads the YAML configuration file. A missing file leaves the configuration unchanged and
// is not an error.
func (c *Config) Load(file string) error {
	if strings.TrimSpace(file) == "" {
		return nil
	}

	path, err := homedir.Expand(file)
	if err != nil {
		return err
	}

	b, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	} else if err != nil {
		return err
	}

	if err := c.Read(bytes.NewReader(b)); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	return nil
}

func (c *Config) Read(r io.Reader) error {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}

	if c.AWS.Credentials != "" {
		path, err := homedir.Expand(c.AWS.Credentials)
		if err != nil {
			return err
		}
		c.AWS.Credentials = path
	}

	if c.Evidence.Keys != "" {
		path, err := homedir.Expand(c.Evidence.Keys)
		if err != nil {
			return err
		}
		c.Evidence.Keys = path
	}

	return nil
}
