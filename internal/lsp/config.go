package lsp

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/sjson"
)

// ServerConfig is a user-supplied server override in the config file.
type ServerConfig struct {
	Command string   `toml:"command"`
	Args    []string `toml:"args"`
}

// Config is the on-disk configuration. Every field is optional; servers
// listed here replace auto-discovered ones for the same language.
type Config struct {
	Root    string                  `toml:"root"`
	Servers map[string]ServerConfig `toml:"servers"`
}

// LoadConfig reads a TOML config file. A missing file is not an error and
// yields an empty config.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// Descriptors converts the configured servers to launch descriptors,
// skipping entries with no command.
func (c *Config) Descriptors() []ServerDescriptor {
	out := make([]ServerDescriptor, 0, len(c.Servers))
	for lang, sc := range c.Servers {
		if sc.Command == "" {
			continue
		}
		out = append(out, ServerDescriptor{Language: lang, Command: sc.Command, Args: sc.Args})
	}
	return out
}

// Apply registers the configured servers on a manager, overriding discovery.
func (c *Config) Apply(m *Manager) {
	for _, desc := range c.Descriptors() {
		m.Register(desc)
	}
}

// StateJSON renders a snapshot of the manager as a JSON document: each
// connection's language, command, and state, plus per-document diagnostic
// counts. Meant for status surfaces and debugging, not for machine parsing.
func StateJSON(m *Manager) ([]byte, error) {
	out := []byte(`{}`)
	var err error

	m.mu.RLock()
	langs := make([]string, 0, len(m.descriptors))
	for lang := range m.descriptors {
		langs = append(langs, lang)
	}
	m.mu.RUnlock()

	for _, lang := range langs {
		m.mu.RLock()
		desc := m.descriptors[lang]
		conn := m.conns[lang]
		m.mu.RUnlock()

		state := StateDisconnected
		if conn != nil {
			state = conn.State()
		}
		prefix := "servers." + lang
		if out, err = sjson.SetBytes(out, prefix+".command", desc.Command); err != nil {
			return nil, err
		}
		if out, err = sjson.SetBytes(out, prefix+".state", state.String()); err != nil {
			return nil, err
		}
	}

	for uri, diags := range m.diags.All() {
		if out, err = sjson.SetBytes(out, "diagnostics."+escapePathKey(string(uri)), len(diags)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// escapePathKey escapes sjson path metacharacters so a URI can be used as a
// single object key.
func escapePathKey(key string) string {
	r := strings.NewReplacer(`\`, `\\`, `.`, `\.`, `*`, `\*`, `?`, `\?`, `|`, `\|`, `#`, `\#`, `@`, `\@`)
	return r.Replace(key)
}
