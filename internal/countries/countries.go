// apps/go-server/internal/countries/countries.go
//
// Reference dataset of countries and their capitals.
//
// Responsibilities:
//   - Decode country records (JSON) and the alias table (YAML).
//   - Validate the dataset once at load: unique names, coordinates in range,
//     aliases pointing at known countries.
//   - Resolve free-text guesses to records (direct name, then alias).
//   - Expose the eligible selection pool (capital + coordinates present).
//
// The process-wide dataset is loaded once via Init and never mutated, so it
// is safe to share across sessions and goroutines.

package countries

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/agnivade/levenshtein"
	"gopkg.in/yaml.v3"

	"github.com/robalobadob/capitals/apps/go-server/assets"
	"github.com/robalobadob/capitals/apps/go-server/internal/geo"
)

// ErrEmptyPool is returned by Pick when no record is eligible for selection.
var ErrEmptyPool = errors.New("countries: no eligible records")

// Record is one country entry. Location is nil when coordinates are missing.
type Record struct {
	Country   string     `json:"country"`
	Capital   string     `json:"capital"`
	Location  *geo.Point `json:"location,omitempty"`
	Continent string     `json:"continent,omitempty"`
	FamousFor string     `json:"famousFor,omitempty"`
}

// Eligible reports whether r can be chosen as a target.
func (r Record) Eligible() bool {
	return r.Country != "" && r.Capital != "" && r.Location != nil
}

// recordJSON mirrors the on-disk shape, where lat/lon may be absent or null.
type recordJSON struct {
	Country   string   `json:"country"`
	Capital   string   `json:"capital"`
	Lat       *float64 `json:"lat"`
	Lon       *float64 `json:"lon"`
	Continent string   `json:"continent"`
	FamousFor string   `json:"famousFor"`
}

type aliasFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// Source is the random source used for target selection.
// *rand.Rand from math/rand/v2 satisfies it.
type Source interface {
	IntN(n int) int
}

// Dataset is an immutable, indexed collection of records.
type Dataset struct {
	records     []Record
	normCountry []string       // Normalize(records[i].Country)
	normCapital []string       // Normalize(records[i].Capital)
	byName      map[string]int // normalized country -> index
	aliases     map[string]int // normalized alias -> index
	pool        []int          // indices of eligible records, dataset order
}

// New validates records and aliases and builds a Dataset.
// aliases maps an alternate name to a canonical country name; it may be nil.
func New(records []Record, aliases map[string]string) (*Dataset, error) {
	d := &Dataset{
		records:     make([]Record, len(records)),
		normCountry: make([]string, len(records)),
		normCapital: make([]string, len(records)),
		byName:      make(map[string]int, len(records)),
		aliases:     make(map[string]int, len(aliases)),
	}
	copy(d.records, records)

	for i, r := range d.records {
		key := Normalize(r.Country)
		if key == "" {
			return nil, fmt.Errorf("countries: record %d has no country name", i)
		}
		if _, dup := d.byName[key]; dup {
			return nil, fmt.Errorf("countries: duplicate country %q", r.Country)
		}
		if r.Location != nil && !r.Location.Valid() {
			return nil, fmt.Errorf("countries: %s: coordinates out of range (%v, %v)",
				r.Country, r.Location.Lat, r.Location.Lon)
		}
		d.byName[key] = i
		d.normCountry[i] = key
		d.normCapital[i] = Normalize(r.Capital)
		if r.Eligible() {
			d.pool = append(d.pool, i)
		}
	}

	for alt, canonical := range aliases {
		idx, ok := d.byName[Normalize(canonical)]
		if !ok {
			return nil, fmt.Errorf("countries: alias %q points at unknown country %q", alt, canonical)
		}
		key := Normalize(alt)
		if key == "" {
			continue
		}
		if other, clash := d.byName[key]; clash && other != idx {
			return nil, fmt.Errorf("countries: alias %q shadows country %q", alt, d.records[other].Country)
		}
		d.aliases[key] = idx
	}
	return d, nil
}

// Parse decodes a JSON record list and an optional YAML alias table.
func Parse(recordsJSON, aliasesYAML []byte) (*Dataset, error) {
	var raw []recordJSON
	if err := json.Unmarshal(recordsJSON, &raw); err != nil {
		return nil, fmt.Errorf("countries: decode records: %w", err)
	}
	records := make([]Record, 0, len(raw))
	for _, r := range raw {
		rec := Record{
			Country:   r.Country,
			Capital:   r.Capital,
			Continent: r.Continent,
			FamousFor: r.FamousFor,
		}
		if r.Lat != nil && r.Lon != nil {
			rec.Location = &geo.Point{Lat: *r.Lat, Lon: *r.Lon}
		}
		records = append(records, rec)
	}

	var af aliasFile
	if len(aliasesYAML) > 0 {
		if err := yaml.Unmarshal(aliasesYAML, &af); err != nil {
			return nil, fmt.Errorf("countries: decode aliases: %w", err)
		}
	}
	return New(records, af.Aliases)
}

// Lookup resolves free text to a record by country name, then by alias.
func (d *Dataset) Lookup(text string) (Record, bool) {
	key := Normalize(text)
	if key == "" {
		return Record{}, false
	}
	if i, ok := d.byName[key]; ok {
		return d.records[i], true
	}
	if i, ok := d.aliases[key]; ok {
		return d.records[i], true
	}
	return Record{}, false
}

// Pick selects an eligible record uniformly at random from src.
func (d *Dataset) Pick(src Source) (Record, error) {
	if len(d.pool) == 0 {
		return Record{}, ErrEmptyPool
	}
	return d.records[d.pool[src.IntN(len(d.pool))]], nil
}

// PoolAt returns the i-th eligible record (modulo pool size), used for
// deterministic daily targets.
func (d *Dataset) PoolAt(i int) (Record, error) {
	if len(d.pool) == 0 {
		return Record{}, ErrEmptyPool
	}
	i %= len(d.pool)
	if i < 0 {
		i += len(d.pool)
	}
	return d.records[d.pool[i]], nil
}

// PoolSize returns the number of eligible records.
func (d *Dataset) PoolSize() int { return len(d.pool) }

// Closest returns the country name nearest to text by edit distance, if
// that distance is at most maxDist. Exact matches are not suggestions.
func (d *Dataset) Closest(text string, maxDist int) (string, bool) {
	key := Normalize(text)
	if key == "" || maxDist <= 0 {
		return "", false
	}
	best, bestDist := -1, maxDist+1
	for i, name := range d.normCountry {
		dist := levenshtein.ComputeDistance(key, name)
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	if best < 0 || bestDist == 0 {
		return "", false
	}
	return d.records[best].Country, true
}

// Stats returns counts of loaded data: (records, eligible, aliases).
func (d *Dataset) Stats() (records, eligible, aliases int) {
	return len(d.records), len(d.pool), len(d.aliases)
}

// --- process-wide dataset ---

var (
	initOnce   sync.Once
	defaultSet *Dataset
	initialErr error
)

// Init loads the process-wide dataset exactly once. Empty paths fall back
// to the embedded assets.
func Init(countriesPath, aliasesPath string) error {
	initOnce.Do(func() {
		recs, err := readOrEmbedded(countriesPath, assets.Countries)
		if err != nil {
			initialErr = err
			return
		}
		als, err := readOrEmbedded(aliasesPath, assets.Aliases)
		if err != nil {
			initialErr = err
			return
		}
		defaultSet, initialErr = Parse(recs, als)
		if initialErr == nil && defaultSet.PoolSize() == 0 {
			initialErr = ErrEmptyPool
		}
	})
	return initialErr
}

// Default returns the dataset loaded by Init, or nil before a successful Init.
func Default() *Dataset { return defaultSet }

func readOrEmbedded(path string, embedded func() ([]byte, error)) ([]byte, error) {
	if path == "" {
		return embedded()
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("countries: read %s: %w", path, err)
	}
	return b, nil
}
