// Package view renders LifeLink pages and datastar fragments. Markup lives
// in the .templ files; run `templ generate` after editing them.
package view

import (
	"maps"
	"slices"
	"strings"

	"github.com/msomdec/lifelink/internal/domain"
)

const (
	datastarScript = "https://cdn.jsdelivr.net/gh/starfederation/datastar@v1.0.0/bundles/datastar.js"
	dateLayout     = "Jan 2, 2006 15:04"
)

// Nav describes the signed-in user shown in the header.
type Nav struct {
	Email     string
	Dashboard string
}

// signals builds a datastar data-signals object from key/value pairs.
// Values must be JS literals.
func signals(pairs ...string) string {
	var b strings.Builder
	b.WriteString("{")
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pairs[i])
		b.WriteString(": ")
		b.WriteString(pairs[i+1])
	}
	b.WriteString("}")
	return b.String()
}

// jsString quotes s as a single-quoted JS string literal.
func jsString(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\'', '\\':
			out = append(out, '\\', c)
		case '\n':
			out = append(out, '\\', 'n')
		default:
			out = append(out, c)
		}
	}
	return string(append(out, '\''))
}

func profileName(p *domain.Profile) string {
	if p == nil {
		return ""
	}
	return p.FullName
}

func profilePhone(p *domain.Profile) string {
	if p == nil || p.Phone == nil {
		return ""
	}
	return *p.Phone
}

func sortedKeys(counts map[string]int) []string {
	return slices.Sorted(maps.Keys(counts))
}
