// Package extract defines the closed set of rules that derive a field value
// from a collection item.
package extract

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/justestif/discat/internal/collection"
)

// Strategy is one extraction rule.
type Strategy int

// Extraction strategies.
const (
	Year Strategy = iota + 1
	Decade
	Country
	FirstGenre
	AllGenres
	FirstStyle
	AllStyles
	FormatSimple
	FormatFull
	Label
	CatalogNumber
	PriceLow
	NumForSale
	CommunityHave
	CommunityWant
)

var names = map[Strategy]string{
	Year:          "year",
	Decade:        "decade",
	Country:       "country",
	FirstGenre:    "first_genre",
	AllGenres:     "all_genres",
	FirstStyle:    "first_style",
	AllStyles:     "all_styles",
	FormatSimple:  "format_simple",
	FormatFull:    "format_full",
	Label:         "label",
	CatalogNumber: "catalog_number",
	PriceLow:      "price_low",
	NumForSale:    "num_for_sale",
	CommunityHave: "community_have",
	CommunityWant: "community_want",
}

// All returns every strategy in declaration order.
func All() []Strategy {
	out := make([]Strategy, 0, len(names))
	for s := Year; s <= CommunityWant; s++ {
		out = append(out, s)
	}
	return out
}

// Parse resolves a strategy from its name, e.g. "first_style".
func Parse(name string) (Strategy, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for s, n := range names {
		if n == key {
			return s, nil
		}
	}
	return 0, fmt.Errorf("unknown source %q", name)
}

// String returns the strategy name.
func (s Strategy) String() string {
	if n, ok := names[s]; ok {
		return n
	}
	return "strategy(" + strconv.Itoa(int(s)) + ")"
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	if _, ok := names[s]; !ok {
		return nil, fmt.Errorf("invalid strategy %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// NeedsMetadata reports whether the strategy reads detailed metadata,
// which is only present after a metadata enrichment pass.
func (s Strategy) NeedsMetadata() bool {
	switch s {
	case Country, FirstGenre, AllGenres, FirstStyle, AllStyles,
		PriceLow, NumForSale, CommunityHave, CommunityWant:
		return true
	}
	return false
}

// Extract derives the value for it. ok is false when the item carries
// nothing to derive from; an empty result is never returned with ok true.
func (s Strategy) Extract(it collection.Item) (string, bool) {
	v := s.extract(it)
	return v, v != ""
}

func (s Strategy) extract(it collection.Item) string {
	bi := it.BasicInformation
	md := it.DetailedMetadata
	if md == nil {
		md = &collection.Release{}
	}

	switch s {
	case Year:
		if bi.Year == 0 {
			return ""
		}
		return strconv.Itoa(bi.Year)
	case Decade:
		if bi.Year == 0 {
			return ""
		}
		return strconv.Itoa(bi.Year/10*10) + "s"
	case Country:
		return md.Country
	case FirstGenre:
		return first(md.Genres)
	case AllGenres:
		return strings.Join(md.Genres, ", ")
	case FirstStyle:
		return first(md.Styles)
	case AllStyles:
		return strings.Join(md.Styles, ", ")
	case FormatSimple:
		return simplifyFormat(formatNames(bi.Formats))
	case FormatFull:
		return formatNames(bi.Formats)
	case Label:
		parts := make([]string, 0, len(bi.Labels))
		for _, l := range bi.Labels {
			if l.Name != "" {
				parts = append(parts, l.Name)
			}
		}
		return strings.Join(parts, ", ")
	case CatalogNumber:
		parts := make([]string, 0, len(bi.Labels))
		for _, l := range bi.Labels {
			if l.CatNo != "" {
				parts = append(parts, l.CatNo)
			}
		}
		return strings.Join(parts, ", ")
	case PriceLow:
		if md.LowestPrice == nil || *md.LowestPrice == 0 {
			return ""
		}
		return formatPrice(*md.LowestPrice)
	case NumForSale:
		return positive(md.NumForSale)
	case CommunityHave:
		if md.Community == nil {
			return ""
		}
		return positive(md.Community.Have)
	case CommunityWant:
		if md.Community == nil {
			return ""
		}
		return positive(md.Community.Want)
	}
	return ""
}

func formatNames(formats []collection.Format) string {
	parts := make([]string, 0, len(formats))
	for _, f := range formats {
		if f.Name != "" {
			parts = append(parts, f.Name)
		}
	}
	return strings.Join(parts, ", ")
}

// simplifyFormat buckets a joined format list. It always yields a value.
func simplifyFormat(joined string) string {
	for _, name := range []string{"Vinyl", "CD", "Cassette", "Digital"} {
		if strings.Contains(joined, name) {
			return name
		}
	}
	return "Other"
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

func positive(n int) string {
	if n == 0 {
		return ""
	}
	return strconv.Itoa(n)
}

// formatPrice renders a price the way values already stored in the field
// were written: shortest digits, always with a fractional part, and
// exponent form outside [1e-4, 1e16).
func formatPrice(v float64) string {
	if a := math.Abs(v); a >= 1e16 || a < 1e-4 {
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
