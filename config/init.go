package config

import (
	"fmt"
	"io"
	"os"

	"github.com/kelseyhightower/envconfig"
	yaml "gopkg.in/yaml.v2"
)

// reading config error is fatal, and exists main thread
func processError(err error) {
	fmt.Println(err)
	os.Exit(2)
}

func decode(r io.Reader, cfg *Configuration) error {
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(cfg); err != nil && err != io.EOF {
		return fmt.Errorf("cannot decode config: %w", err)
	}
	return nil
}

func readFile(path string, cfg *Configuration) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return decode(f, cfg)
}

func readEnv(cfg *Configuration) error {
	return envconfig.Process(EnvPrefix, cfg)
}

// Load reads the yaml file, overlays the environment and validates.
func Load(path string) (Configuration, error) {
	var cfg Configuration
	if err := readFile(path, &cfg); err != nil {
		return cfg, err
	}
	if err := readEnv(&cfg); err != nil {
		return cfg, err
	}
	cfg.applyDefaults()
	return cfg, cfg.Validate()
}

func Init(path string) {
	cfg, err := Load(path)
	if err != nil {
		processError(err)
	}
	Config = cfg
}
