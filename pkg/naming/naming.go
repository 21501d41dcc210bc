// Package naming derives stable file and directory names from program and episode metadata.
package naming

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/pkg/errors"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/castsync/castsync/pkg/model"
)

const maxSlugBytes = 100

// Letters that don't decompose into a base letter plus a combining mark.
var folding = strings.NewReplacer(
	"ł", "l", "Ł", "L",
	"ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D",
	"ß", "ss",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"þ", "th", "Þ", "TH",
)

// Slug folds s to lowercase ASCII with runs of anything else collapsed into a single underscore.
func Slug(s string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), folding.Replace(s))
	if err != nil {
		folded = s
	}

	var (
		b       strings.Builder
		pending bool
	)

	for _, r := range strings.ToLower(folded) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteByte('_')
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}

	out := b.String()
	if len(out) > maxSlugBytes {
		out = strings.TrimRight(out[:maxSlugBytes], "_")
	}

	return out
}

// Namer builds names with dates rendered in a fixed time zone.
type Namer struct {
	loc *time.Location
}

func New(loc *time.Location) *Namer {
	if loc == nil {
		loc = time.UTC
	}
	return &Namer{loc: loc}
}

// ProgramDir is the directory (and feed file stem) of a program.
func (n *Namer) ProgramDir(p *model.Program) string {
	if slug := Slug(p.Title); slug != "" {
		return slug
	}
	return fmt.Sprintf("program_%s", Slug(p.ID))
}

// FileName renders {date}_{title}.{ext}.
func (n *Namer) FileName(ep *model.Episode, ext string) string {
	title := Slug(ep.Title)
	if title == "" {
		title = fmt.Sprintf("episode_%s", Slug(ep.ID))
	}

	return fmt.Sprintf("%s_%s.%s", ep.PublishedAt.In(n.loc).Format("2006-01-02"), title, ext)
}

// Claims maps file names to the id of the episode that owns them. Owners never change once
// recorded, so a name means the same episode whatever batch it is computed in.
type Claims map[string]string

// ParseClaims reads claims saved by Claims.Encode. Empty input yields no claims.
func ParseClaims(data []byte) (Claims, error) {
	claims := Claims{}
	if len(data) == 0 {
		return claims, nil
	}

	if err := json.Unmarshal(data, &claims); err != nil {
		return nil, errors.Wrap(err, "failed to parse name claims")
	}

	return claims, nil
}

func (c Claims) Encode() ([]byte, error) {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode name claims")
	}
	return data, nil
}

// Assign names a batch of episodes. A name already claimed by another episode gets the id appended.
// Unclaimed names shared within the batch go to the lowest id, the others get their id appended,
// so names don't depend on the order episodes arrive in. New owners are recorded in claims
// unless it is nil.
func (n *Namer) Assign(episodes []*model.Episode, ext func(ep *model.Episode) string, claims Claims) map[string]string {
	groups := make(map[string][]*model.Episode)
	for _, ep := range episodes {
		name := n.FileName(ep, ext(ep))
		groups[name] = append(groups[name], ep)
	}

	names := make(map[string]string, len(episodes))
	for name, group := range groups {
		owner, claimed := claims[name]
		if !claimed {
			sort.Slice(group, func(i, j int) bool {
				return lessID(group[i].ID, group[j].ID)
			})

			owner = group[0].ID
			if claims != nil {
				claims[name] = owner
			}
		}

		for _, ep := range group {
			if ep.ID == owner {
				names[ep.ID] = name
				continue
			}
			names[ep.ID] = withSuffix(name, Slug(ep.ID))
		}
	}

	return names
}

func withSuffix(name string, suffix string) string {
	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return name + "_" + suffix
	}
	return name[:dot] + "_" + suffix + name[dot:]
}

// lessID compares numeric ids numerically and everything else lexically.
func lessID(a, b string) bool {
	if isDigits(a) && isDigits(b) {
		a, b = strings.TrimLeft(a, "0"), strings.TrimLeft(b, "0")
		if len(a) != len(b) {
			return len(a) < len(b)
		}
	}
	return a < b
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
