// Package presets maps a difficulty to the turn counts and settings a new
// game starts from when the caller does not supply them.
package presets

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"speechplay/internal/game"
)

// Preset holds the defaults for one difficulty
type Preset struct {
	MaxTurns    int           `yaml:"max_turns"`
	TotalRounds int           `yaml:"total_rounds"`
	Settings    game.Settings `yaml:"settings"`
}

// Set is the full difficulty → preset table
type Set map[game.Difficulty]Preset

// Builtin returns the presets used when no file is configured
func Builtin() Set {
	easy := game.DefaultSettings()
	easy.TimePerTurn = 45

	medium := game.DefaultSettings()

	hard := game.DefaultSettings()
	hard.TimePerTurn = 20
	hard.MaxAttempts = 2
	hard.HintsEnabled = false

	return Set{
		game.DifficultyEasy:   {MaxTurns: 10, TotalRounds: 2, Settings: easy},
		game.DifficultyMedium: {MaxTurns: 16, TotalRounds: 4, Settings: medium},
		game.DifficultyHard:   {MaxTurns: 20, TotalRounds: 4, Settings: hard},
	}
}

// For returns the preset for d, falling back to the medium preset
func (s Set) For(d game.Difficulty) Preset {
	if p, ok := s[d]; ok {
		return p
	}
	return s[game.DifficultyMedium]
}

type filePreset struct {
	MaxTurns    int       `yaml:"max_turns"`
	TotalRounds int       `yaml:"total_rounds"`
	Settings    yaml.Node `yaml:"settings"`
}

type file struct {
	Presets map[game.Difficulty]filePreset `yaml:"presets"`
}

// Load reads presets from a YAML file. Difficulties and fields the file
// leaves out keep their built-in values. An empty path returns Builtin().
func Load(path string) (Set, error) {
	if path == "" {
		return Builtin(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read presets file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a presets document on top of the built-in presets
func Parse(data []byte) (Set, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse presets: %w", err)
	}

	set := Builtin()
	for difficulty, fp := range f.Presets {
		if !difficulty.Valid() {
			return nil, fmt.Errorf("unknown difficulty %q in presets", difficulty)
		}
		p := set[difficulty]
		if fp.MaxTurns != 0 {
			p.MaxTurns = fp.MaxTurns
		}
		if fp.TotalRounds != 0 {
			p.TotalRounds = fp.TotalRounds
		}
		if !fp.Settings.IsZero() {
			if err := fp.Settings.Decode(&p.Settings); err != nil {
				return nil, fmt.Errorf("invalid %s settings: %w", difficulty, err)
			}
		}
		set[difficulty] = p
	}

	if err := set.Validate(); err != nil {
		return nil, err
	}
	return set, nil
}

// Validate checks every preset could create a game
func (s Set) Validate() error {
	for difficulty, p := range s {
		if p.MaxTurns < 1 {
			return fmt.Errorf("preset %s: max_turns must be at least 1", difficulty)
		}
		if p.TotalRounds < 1 || p.TotalRounds > p.MaxTurns {
			return fmt.Errorf("preset %s: total_rounds must be between 1 and max_turns", difficulty)
		}
		if err := p.Settings.Validate(); err != nil {
			return fmt.Errorf("preset %s: %w", difficulty, err)
		}
	}
	return nil
}
