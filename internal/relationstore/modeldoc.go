package relationstore

import (
	"embed"
	"fmt"

	"github.com/BurntSushi/toml"
)

//go:embed models/*.toml
var modelDocsFS embed.FS

// KindDoc is one object kind's relation set within an authorization-model
// document (§3.3: "an authorization-model document (kinds, relations,
// rules)").
type KindDoc struct {
	Name      string   `toml:"name"`
	Relations []string `toml:"relations"`
}

// TupleDoc is one setup tuple an authorization-model document installs
// when it is bootstrapped (§3.3: "an ordered list of setup tuples").
type TupleDoc struct {
	User     string `toml:"user"`
	Relation string `toml:"relation"`
	Object   string `toml:"object"`
}

// MigrationDoc names the one-shot migration function associated with a
// model version, if any (§3.3: "an optional migration function").
type MigrationDoc struct {
	Function string `toml:"function"`
}

// ModelDoc is a compiled-in authorization-model document (§3.3). The v3
// and v4 documents ship as TOML fixtures under models/ and are loaded
// once at bootstrap via ModelManager.
type ModelDoc struct {
	Version     string       `toml:"version"`
	Kinds       []KindDoc    `toml:"kinds"`
	SetupTuples []TupleDoc   `toml:"setup_tuples"`
	Migration   MigrationDoc `toml:"migration"`
}

// SetupWrites converts the document's setup tuples into writable Tuples.
func (d ModelDoc) SetupWrites() []Tuple {
	out := make([]Tuple, len(d.SetupTuples))
	for i, t := range d.SetupTuples {
		out[i] = Tuple{User: t.User, Relation: t.Relation, Object: t.Object}
	}
	return out
}

// LoadModelDoc decodes the embedded TOML fixture for the given version
// ("3.0" or "4.0").
func LoadModelDoc(version string) (ModelDoc, error) {
	name := "models/v3.toml"
	if version == "4.0" {
		name = "models/v4.toml"
	}
	data, err := modelDocsFS.ReadFile(name)
	if err != nil {
		return ModelDoc{}, fmt.Errorf("relationstore: load model doc %s: %w", version, err)
	}
	var doc ModelDoc
	if _, err := toml.Decode(string(data), &doc); err != nil {
		return ModelDoc{}, fmt.Errorf("relationstore: decode model doc %s: %w", version, err)
	}
	return doc, nil
}
