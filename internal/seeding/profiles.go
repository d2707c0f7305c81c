package seeding

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/EmpoweredVote/cii-backend/internal/regions"
	"github.com/goccy/go-yaml"
)

//go:embed data/country_profiles.yaml
var defaultProfilesYAML []byte

type IncomeTier string

const (
	IncomeHigh        IncomeTier = "high"
	IncomeUpperMiddle IncomeTier = "upper_middle"
	IncomeLowerMiddle IncomeTier = "lower_middle"
	IncomeLow         IncomeTier = "low"
)

type ClimateZone string

const (
	ClimateTropical    ClimateZone = "tropical"
	ClimateArid        ClimateZone = "arid"
	ClimateTemperate   ClimateZone = "temperate"
	ClimateContinental ClimateZone = "continental"
	ClimatePolar       ClimateZone = "polar"
)

type PollutionLevel string

const (
	PollutionLow      PollutionLevel = "low"
	PollutionModerate PollutionLevel = "moderate"
	PollutionHigh     PollutionLevel = "high"
)

// Profile is the baseline a country's placeholder metrics are derived from.
type Profile struct {
	Income    IncomeTier     `yaml:"income"`
	Climate   ClimateZone    `yaml:"climate"`
	Pollution PollutionLevel `yaml:"pollution"`
}

func (p Profile) validate() error {
	if _, ok := incomeBaselines[p.Income]; !ok {
		return fmt.Errorf("unknown income tier %q", p.Income)
	}
	if _, ok := climateBaselines[p.Climate]; !ok {
		return fmt.Errorf("unknown climate zone %q", p.Climate)
	}
	if _, ok := pollutionBaselines[p.Pollution]; !ok {
		return fmt.Errorf("unknown pollution level %q", p.Pollution)
	}
	return nil
}

// Profiles maps internal country codes to profiles.
type Profiles struct {
	fallback  Profile
	countries map[string]Profile
}

type profilesFile struct {
	Default   Profile            `yaml:"default"`
	Countries map[string]Profile `yaml:"countries"`
}

// ParseProfiles decodes a profile table. Every entry, the default included,
// must name known tiers.
func ParseProfiles(data []byte) (*Profiles, error) {
	var f profilesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse profiles: %w", err)
	}
	if err := f.Default.validate(); err != nil {
		return nil, fmt.Errorf("parse profiles: default: %w", err)
	}
	p := &Profiles{fallback: f.Default, countries: make(map[string]Profile, len(f.Countries))}
	for code, prof := range f.Countries {
		code = strings.ToUpper(strings.TrimSpace(code))
		if len(code) != 2 {
			return nil, fmt.Errorf("parse profiles: bad country code %q", code)
		}
		if err := prof.validate(); err != nil {
			return nil, fmt.Errorf("parse profiles: %s: %w", code, err)
		}
		p.countries[code] = prof
	}
	return p, nil
}

// LoadProfiles reads the table at path, or the embedded table when path is
// empty.
func LoadProfiles(path string) (*Profiles, error) {
	if path == "" {
		return ParseProfiles(defaultProfilesYAML)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profiles: %w", err)
	}
	return ParseProfiles(data)
}

// For returns the profile of code. Sub-national codes use their country's
// profile; unknown countries get the default.
func (p *Profiles) For(code string) Profile {
	if prof, ok := p.countries[regions.ParentCode(strings.ToUpper(code))]; ok {
		return prof
	}
	return p.fallback
}

func (p *Profiles) Len() int { return len(p.countries) }
