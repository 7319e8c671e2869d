package domain

// TraitAttribute is one name/value pair of token metadata, with the source's
// rarity score for that value.
type TraitAttribute struct {
	Name   string
	Value  string
	Rarity float64
}

// TraitPayload is the full trait metadata of one token as reported by the
// source. A nil payload means the source has no metadata for the token,
// which is a legitimate final answer, not an error.
type TraitPayload struct {
	TokenID    int64
	Attributes []TraitAttribute
}

// TraitRecord is one stored trait row, linked to its category dictionary
// entry.
type TraitRecord struct {
	Ticker     string
	TokenID    int64
	TraitName  string
	TraitValue string
	Rarity     float64
	CategoryID int64
}

// TraitCategory is a dictionary entry naming one trait dimension of a
// collection. Display order is assigned in order of first discovery.
type TraitCategory struct {
	ID           int64
	Name         string
	DisplayOrder int
}
