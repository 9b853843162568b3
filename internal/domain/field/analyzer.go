package field

// Analyzer is a named custom text analyzer. Fields reference it by name;
// its definition travels in the index analysis settings.
type Analyzer struct {
	Name        string
	Type        string // "custom" when empty
	Tokenizer   string
	Filters     []string
	CharFilters []string

	// Component definitions referenced by name above.
	FilterDefs     map[string]map[string]any
	TokenizerDefs  map[string]map[string]any
	CharFilterDefs map[string]map[string]any
}

// JSON returns the analyzer reference used inside a field mapping.
func (a *Analyzer) JSON() any { return a.Name }

// Definition returns the analysis settings fragment declaring a.
func (a *Analyzer) Definition() map[string]any {
	typ := a.Type
	if typ == "" {
		typ = "custom"
	}
	def := map[string]any{"type": typ}
	if a.Tokenizer != "" {
		def["tokenizer"] = a.Tokenizer
	}
	if len(a.Filters) > 0 {
		def["filter"] = append([]string(nil), a.Filters...)
	}
	if len(a.CharFilters) > 0 {
		def["char_filter"] = append([]string(nil), a.CharFilters...)
	}

	out := map[string]any{"analyzer": map[string]any{a.Name: def}}
	addDefs(out, "filter", a.FilterDefs)
	addDefs(out, "tokenizer", a.TokenizerDefs)
	addDefs(out, "char_filter", a.CharFilterDefs)
	return out
}

func addDefs(out map[string]any, key string, defs map[string]map[string]any) {
	if len(defs) == 0 {
		return
	}
	m := make(map[string]any, len(defs))
	for name, d := range defs {
		m[name] = d
	}
	out[key] = m
}
