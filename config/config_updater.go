package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"reflect"

	"github.com/BurntSushi/toml"
)

// VerifyConfigOnStartup runs all checks to ensure a valid config file exists and is updated.
// This should be called when the application starts.
func VerifyConfigOnStartup() {
	configPath := GetConfigPath()
	if err := EnsureConfigExists(configPath); err != nil {
		log.Printf("Error ensuring config exists: %v", err)
	}
	if err := EnsureConfigUpdated(configPath); err != nil {
		log.Printf("Error updating config: %v", err)
	}
}

// EnsureConfigExists checks if a config file is present. If not, it copies
// example-config.toml from the working directory or writes the defaults.
func EnsureConfigExists(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), os.ModePerm); err != nil {
		return err
	}

	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		return err
	}

	if _, err := os.Stat("example-config.toml"); err == nil {
		err = copyFile("example-config.toml", configPath)
		if err == nil {
			return nil
		}
		log.Printf("Failed to copy example config: %v. Writing defaults instead.", err)
	}

	return saveConfigTo(configPath, CreateDefaultConfig())
}

// EnsureConfigUpdated adds sections introduced after the file was written,
// filling them with defaults. Values the user already set are never touched.
func EnsureConfigUpdated(configPath string) error {
	var rawConfig map[string]any
	if _, err := toml.DecodeFile(configPath, &rawConfig); err != nil {
		return err
	}

	var cfg Config
	if _, err := toml.DecodeFile(configPath, &cfg); err != nil {
		return err
	}

	defaultConfig := CreateDefaultConfig()
	isUpdated := false

	sections := []struct {
		key      string
		current  any
		defaults any
	}{
		{"board", &cfg.Board, defaultConfig.Board},
		{"options", &cfg.Options, defaultConfig.Options},
		{"images", &cfg.Images, defaultConfig.Images},
		{"storage", &cfg.Storage, defaultConfig.Storage},
		{"toxicity", &cfg.Toxicity, defaultConfig.Toxicity},
		{"dashboard", &cfg.Dashboard, defaultConfig.Dashboard},
		{"notifications", &cfg.Notifications, defaultConfig.Notifications},
	}

	for _, section := range sections {
		sectionMap, ok := rawConfig[section.key].(map[string]any)
		if !ok {
			reflect.ValueOf(section.current).Elem().Set(reflect.ValueOf(section.defaults))
			isUpdated = true
			continue
		}
		if fillMissingFields(sectionMap, section.current, section.defaults) {
			isUpdated = true
		}
	}

	if !isUpdated {
		return nil
	}

	file, err := os.Create(configPath)
	if err != nil {
		return err
	}
	defer file.Close()
	return toml.NewEncoder(file).Encode(cfg)
}

// fillMissingFields copies default values into every field whose toml key is
// absent from raw. It reports whether anything was copied.
func fillMissingFields(raw map[string]any, current any, defaults any) bool {
	cur := reflect.ValueOf(current).Elem()
	def := reflect.ValueOf(defaults)
	t := cur.Type()

	updated := false
	for i := 0; i < t.NumField(); i++ {
		key := t.Field(i).Tag.Get("toml")
		if key == "" || key == "-" {
			continue
		}
		if _, exists := raw[key]; exists {
			continue
		}
		cur.Field(i).Set(def.Field(i))
		updated = true
	}
	return updated
}

func copyFile(srcPath, dstPath string) error {
	srcFile, err := os.Open(srcPath)
	if err != nil {
		return err
	}
	defer srcFile.Close()

	dstFile, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer dstFile.Close()

	_, err = io.Copy(dstFile, srcFile)
	return err
}

// ResetConfig removes the current config file (if present) and writes a fresh
// default config. This does not preserve any previous values.
func ResetConfig() error {
	configPath := GetConfigPath()
	_ = os.Remove(configPath)
	return saveConfigTo(configPath, CreateDefaultConfig())
}
