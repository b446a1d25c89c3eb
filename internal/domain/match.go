package domain

// MatchType records which pipeline stage resolved an entity.
type MatchType string

const (
	MatchAlias    MatchType = "alias"
	MatchExact    MatchType = "exact"
	MatchPrefix   MatchType = "prefix"
	MatchContains MatchType = "contains"
	MatchAI       MatchType = "ai"
	MatchNone     MatchType = "none"
)

// EntityRef identifies a known payee record in the record store.
type EntityRef struct {
	ID   string `json:"entity_id"`
	Name string `json:"entity_name"`
	URL  string `json:"entity_url,omitempty"`
}

// EntityMatch is the outcome of resolving a free-text description to an
// entity. MatchNone is a valid terminal value.
type EntityMatch struct {
	EntityID   string    `json:"entity_id,omitempty"`
	EntityName string    `json:"entity_name,omitempty"`
	EntityURL  string    `json:"entity_url,omitempty"`
	MatchType  MatchType `json:"match_type"`
	Confidence float64   `json:"confidence,omitempty"`
}

// Heuristic reports whether the match came from the deterministic matcher
// rather than the AI fallback.
func (m EntityMatch) Heuristic() bool {
	switch m.MatchType {
	case MatchAlias, MatchExact, MatchPrefix, MatchContains:
		return true
	}
	return false
}
