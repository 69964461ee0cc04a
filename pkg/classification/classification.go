package classification

import (
	"errors"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Level is one classification in a closed, totally ordered set. Higher rank
// means more restrictive.
type Level struct {
	Name string
	Rank int
}

// Lattice is an immutable snapshot of the configured level set. It is built
// once at process start and handed to callers by value.
type Lattice struct {
	byName map[string]Level
	levels []Level
}

type configFile struct {
	Version int           `yaml:"version"`
	Levels  []configLevel `yaml:"levels"`
}

type configLevel struct {
	Name string `yaml:"name"`
	Rank int    `yaml:"rank"`
}

func ParseYAML(b []byte) (Lattice, error) {
	var cfg configFile
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return Lattice{}, err
	}
	if cfg.Version != 1 {
		return Lattice{}, errors.New("classification: unsupported version")
	}
	return New(levelsFromConfig(cfg.Levels))
}

func Load(path string) (Lattice, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Lattice{}, err
	}
	return ParseYAML(b)
}

func levelsFromConfig(cls []configLevel) []Level {
	out := make([]Level, 0, len(cls))
	for _, cl := range cls {
		out = append(out, Level{Name: cl.Name, Rank: cl.Rank})
	}
	return out
}

func New(levels []Level) (Lattice, error) {
	if len(levels) == 0 {
		return Lattice{}, errors.New("classification: empty level set")
	}

	byName := make(map[string]Level, len(levels))
	ordered := make([]Level, 0, len(levels))
	seenRank := make(map[int]bool, len(levels))
	for _, lv := range levels {
		name := canonicalName(lv.Name)
		if name == "" {
			return Lattice{}, errors.New("classification: level name required")
		}
		if _, dup := byName[name]; dup {
			return Lattice{}, errors.New("classification: duplicate level name: " + name)
		}
		if seenRank[lv.Rank] {
			return Lattice{}, errors.New("classification: duplicate level rank")
		}
		seenRank[lv.Rank] = true
		lv.Name = name
		byName[name] = lv
		ordered = append(ordered, lv)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Rank < ordered[j].Rank })

	return Lattice{byName: byName, levels: ordered}, nil
}

func canonicalName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}

// LevelByName resolves a configured level. Lookup is case-insensitive.
func (l Lattice) LevelByName(name string) (Level, bool) {
	lv, ok := l.byName[canonicalName(name)]
	return lv, ok
}

// Levels returns the configured set ordered from least to most restrictive.
func (l Lattice) Levels() []Level {
	out := make([]Level, len(l.levels))
	copy(out, l.levels)
	return out
}

// AtLeastAsRestrictive reports whether a is at or above b in the hierarchy.
func (l Lattice) AtLeastAsRestrictive(a Level, b Level) bool {
	return a.Rank >= b.Rank
}

// Max returns the more restrictive of the two levels.
func (l Lattice) Max(a Level, b Level) Level {
	if b.Rank > a.Rank {
		return b
	}
	return a
}

// Floor returns the least restrictive configured level.
func (l Lattice) Floor() Level {
	return l.levels[0]
}
