package config

import (
	_ "embed"
	"fmt"
	"os"

	"lifequest/internal/game"

	"github.com/BurntSushi/toml"
)

//go:embed crises.toml
var defaultCrises []byte

type crisisFile struct {
	Crisis []game.Crisis `toml:"crisis"`
}

// LoadCrises reads the crisis catalog from path, or the built-in catalog when
// path is empty.
func LoadCrises(path string) ([]game.Crisis, error) {
	data := defaultCrises
	source := "built-in catalog"
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read crises file: %w", err)
		}
		data, source = b, path
	}
	return ParseCrises(data, source)
}

func ParseCrises(data []byte, source string) ([]game.Crisis, error) {
	var f crisisFile
	md, err := toml.Decode(string(data), &f)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", source, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("parse %s: unknown key %s", source, undecoded[0])
	}
	if len(f.Crisis) == 0 {
		return nil, fmt.Errorf("parse %s: no crises defined", source)
	}
	seen := make(map[string]bool, len(f.Crisis))
	for i := range f.Crisis {
		c := &f.Crisis[i]
		if err := c.Validate(); err != nil {
			return nil, fmt.Errorf("parse %s: crisis %d: %w", source, i, err)
		}
		if seen[c.Name] {
			return nil, fmt.Errorf("parse %s: duplicate crisis %q", source, c.Name)
		}
		seen[c.Name] = true
	}
	return f.Crisis, nil
}
