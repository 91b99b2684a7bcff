package envrig

import "sync"

// Provenance lists where each bound field of a loaded config came from.
type Provenance struct {
	Fields []FieldProvenance
}

// FieldProvenance is the origin of one field or slice element.
type FieldProvenance struct {
	FieldPath  string // "Database.Host", "Scopes[0]"
	KeyPath    string // "database.host", "scopes[0]"
	SourceName string // "env:APP_PORT", "file:config.yaml", "default"
	Secret     bool
}

// provenanceStore maps *T returned by Load to its *Provenance.
var provenanceStore sync.Map

// GetProvenance returns the provenance recorded when cfg was loaded. It is
// safe for concurrent use. Configs built by hand have none.
func GetProvenance[T any](cfg *T) (*Provenance, bool) {
	if cfg == nil {
		return nil, false
	}
	v, ok := provenanceStore.Load(cfg)
	if !ok {
		return nil, false
	}
	prov, ok := v.(*Provenance)
	return prov, ok
}

func storeProvenance[T any](cfg *T, prov *Provenance) {
	if cfg == nil || prov == nil {
		return
	}
	provenanceStore.Store(cfg, prov)
}

// provenanceIndex maps field paths to their provenance records. Configs that
// were not produced by a Loader yield an empty index.
func provenanceIndex[T any](cfg *T) map[string]*FieldProvenance {
	index := make(map[string]*FieldProvenance)
	prov, ok := GetProvenance(cfg)
	if !ok || prov == nil {
		return index
	}
	for i := range prov.Fields {
		index[prov.Fields[i].FieldPath] = &prov.Fields[i]
	}
	return index
}
