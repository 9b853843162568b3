package hit

// Hit is one raw search result: where it came from and its stored document.
type Hit struct {
	Index  string
	Type   string
	ID     string
	Score  float64
	Source map[string]any
}

// Field returns a document value; "_id" falls back to the engine id.
func (h Hit) Field(name string) (any, bool) {
	if v, ok := h.Source[name]; ok {
		return v, true
	}
	if name == "_id" && h.ID != "" {
		return h.ID, true
	}
	return nil, false
}

// Meta is the search origin attached to a rehydrated record.
type Meta struct {
	Index string  `json:"index"`
	Type  string  `json:"type"`
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// MetaSetter is implemented by records that want their search origin.
type MetaSetter interface {
	SetSearchMeta(Meta)
}

// Page is one window of hits and the total number of matches.
type Page struct {
	Hits  []Hit
	Total int
}
