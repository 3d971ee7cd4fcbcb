// Package universe validates the tradable asset definitions and turns them
// into the initial market.
package universe

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/atmx/paper-engine/internal/model"
	"github.com/atmx/paper-engine/internal/series"
)

// Known sectors.
const (
	SectorTech       = "Tech"
	SectorFinance    = "Finance"
	SectorEnergy     = "Energy"
	SectorHealthcare = "Healthcare"
)

var validSectors = map[string]bool{
	SectorTech:       true,
	SectorFinance:    true,
	SectorEnergy:     true,
	SectorHealthcare: true,
}

// symbolRegex matches 1-8 characters: an upper-case letter followed by
// upper-case letters, digits or dots. Example: NEXO, BRK.B
var symbolRegex = regexp.MustCompile(`^[A-Z][A-Z0-9.]{0,7}$`)

var (
	ErrInvalidSymbol = errors.New("universe: invalid symbol")
	ErrInvalidSector = errors.New("universe: unsupported sector")
	ErrInvalidAsset  = errors.New("universe: invalid asset definition")
	ErrDuplicate     = errors.New("universe: duplicate symbol")
	ErrEmpty         = errors.New("universe: no assets defined")
)

// Def describes one tradable asset. Volatility is annualized.
type Def struct {
	Symbol     string  `yaml:"symbol" json:"symbol"`
	Name       string  `yaml:"name" json:"name"`
	Sector     string  `yaml:"sector" json:"sector"`
	Price      float64 `yaml:"price" json:"price"`
	Volatility float64 `yaml:"volatility" json:"volatility"`
}

// Validate checks a single definition.
func (d Def) Validate() error {
	if !symbolRegex.MatchString(d.Symbol) {
		return fmt.Errorf("%w: %q (expected 1-8 chars of A-Z, 0-9 or '.', starting with a letter)",
			ErrInvalidSymbol, d.Symbol)
	}
	if !validSectors[d.Sector] {
		return fmt.Errorf("%w: %q for %s (expected one of %s)",
			ErrInvalidSector, d.Sector, d.Symbol, strings.Join(Sectors(), ", "))
	}
	if d.Price <= 0 {
		return fmt.Errorf("%w: %s price must be positive", ErrInvalidAsset, d.Symbol)
	}
	if d.Volatility <= 0 {
		return fmt.Errorf("%w: %s volatility must be positive", ErrInvalidAsset, d.Symbol)
	}
	return nil
}

// Validate checks every definition and rejects duplicates.
func Validate(defs []Def) error {
	if len(defs) == 0 {
		return ErrEmpty
	}
	seen := make(map[string]bool, len(defs))
	for _, d := range defs {
		if err := d.Validate(); err != nil {
			return err
		}
		if seen[d.Symbol] {
			return fmt.Errorf("%w: %s", ErrDuplicate, d.Symbol)
		}
		seen[d.Symbol] = true
	}
	return nil
}

// Sectors returns the supported sector tags, sorted.
func Sectors() []string {
	out := make([]string, 0, len(validSectors))
	for s := range validSectors {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Build validates defs and returns fresh assets keyed by symbol, each with
// an empty price history of historyCapacity samples. Quotes and day
// statistics are filled in when the price process seeds the asset.
func Build(defs []Def, historyCapacity int) (map[string]*model.Asset, error) {
	if err := Validate(defs); err != nil {
		return nil, err
	}
	out := make(map[string]*model.Asset, len(defs))
	for _, d := range defs {
		name := d.Name
		if name == "" {
			name = d.Symbol
		}
		out[d.Symbol] = &model.Asset{
			Symbol:     d.Symbol,
			Name:       name,
			Sector:     d.Sector,
			Volatility: d.Volatility,
			Price:      d.Price,
			History:    series.NewWindow[model.PricePoint](historyCapacity),
		}
	}
	return out, nil
}

// Default returns the built-in universe: twelve fictional companies across
// four sectors.
func Default() []Def {
	return []Def{
		{Symbol: "NEXO", Name: "Nexo Systems", Sector: SectorTech, Price: 182.40, Volatility: 0.35},
		{Symbol: "QBIT", Name: "Qubit Labs", Sector: SectorTech, Price: 64.15, Volatility: 0.55},
		{Symbol: "CLDY", Name: "Cloudly Inc", Sector: SectorTech, Price: 121.80, Volatility: 0.40},
		{Symbol: "VALT", Name: "Vault Financial", Sector: SectorFinance, Price: 78.25, Volatility: 0.22},
		{Symbol: "LEDG", Name: "Ledger Bancorp", Sector: SectorFinance, Price: 45.60, Volatility: 0.25},
		{Symbol: "ASRX", Name: "Assurex Group", Sector: SectorFinance, Price: 233.10, Volatility: 0.18},
		{Symbol: "SOLR", Name: "Solaris Power", Sector: SectorEnergy, Price: 28.90, Volatility: 0.45},
		{Symbol: "PTRO", Name: "Petro Dynamics", Sector: SectorEnergy, Price: 96.70, Volatility: 0.30},
		{Symbol: "GRID", Name: "Gridline Utilities", Sector: SectorEnergy, Price: 52.35, Volatility: 0.20},
		{Symbol: "HELX", Name: "Helix Therapeutics", Sector: SectorHealthcare, Price: 38.45, Volatility: 0.60},
		{Symbol: "MDCO", Name: "Medico Health", Sector: SectorHealthcare, Price: 141.20, Volatility: 0.24},
		{Symbol: "GENV", Name: "Genova Bio", Sector: SectorHealthcare, Price: 73.05, Volatility: 0.50},
	}
}
