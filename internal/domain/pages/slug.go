package pages

import (
	"context"
	"crypto/rand"
	"io"
	"math/big"
	"regexp"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
)

const (
	MinSlugLength       = 3
	MaxSlugLength       = 50
	DefaultRandomLength = 10
	titleSuffixLength   = 4
	slugAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	lowerSlugAlphabet   = "abcdefghijklmnopqrstuvwxyz0123456789"
	slugSeparator       = '-'
	maxTitleBaseLength  = MaxSlugLength - titleSuffixLength - 1
	acceptedPunctuation = "-_"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9-]+$`)

// defaultReservedSlugs are path segments served by the application itself.
var defaultReservedSlugs = []string{
	"api", "auth", "bot", "check-slug", "dashboard", "docs", "edit", "healthz",
	"logout", "new", "openapi", "publish", "robots-txt", "schemas", "sitemap", "static",
}

// Availability is the outcome of a slug check.
type Availability struct {
	Available      bool
	Reason         string
	NormalizedSlug string
}

// Normalize lower-cases the input, turns separators into hyphens, drops every
// other character outside [a-z0-9-], collapses hyphen runs and trims hyphens.
func Normalize(raw string) string {
	var builder strings.Builder
	builder.Grow(len(raw))

	pendingSeparator := false
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSeparator && builder.Len() > 0 {
				builder.WriteRune(slugSeparator)
			}
			pendingSeparator = false
			builder.WriteRune(r)
		case r == slugSeparator || r == '_' || unicode.IsSpace(r):
			pendingSeparator = true
		}
	}

	return builder.String()
}

// Allocator validates, checks and generates slugs.
type Allocator struct {
	repo     Repository
	reserved map[string]struct{}
	random   io.Reader
}

// NewAllocator wires the allocator with the repository used for existence checks.
// Extra reserved slugs are normalized and added to the built-in route names.
func NewAllocator(repo Repository, reserved ...string) (*Allocator, error) {
	if repo == nil {
		return nil, eris.New("page repository is required")
	}

	set := make(map[string]struct{}, len(defaultReservedSlugs)+len(reserved))
	for _, slug := range append(append([]string{}, defaultReservedSlugs...), reserved...) {
		if normalized := Normalize(slug); normalized != "" {
			set[normalized] = struct{}{}
		}
	}

	return &Allocator{repo: repo, reserved: set, random: rand.Reader}, nil
}

// Validate applies the format rules without touching the store.
func (a *Allocator) Validate(candidate string) Availability {
	normalized := Normalize(candidate)
	result := Availability{NormalizedSlug: normalized}

	switch {
	case len(normalized) < MinSlugLength:
		result.Reason = ReasonTooShort
	case len(normalized) > MaxSlugLength:
		result.Reason = ReasonTooLong
	case !hasOnlySlugCharacters(candidate) || !slugPattern.MatchString(normalized):
		result.Reason = ReasonInvalidChars
	case a.isReserved(normalized):
		result.Reason = ReasonReserved
	default:
		result.Available = true
	}

	return result
}

// CheckAvailability validates the candidate and, if the format is acceptable,
// checks that no live page uses it. It has no side effects.
func (a *Allocator) CheckAvailability(ctx context.Context, candidate string) (Availability, error) {
	result := a.Validate(candidate)
	if !result.Available {
		return result, nil
	}

	exists, err := a.repo.Exists(ctx, result.NormalizedSlug)
	if err != nil {
		return Availability{NormalizedSlug: result.NormalizedSlug}, eris.Wrapf(err, "checking slug availability: %s", result.NormalizedSlug)
	}

	if exists {
		result.Available = false
		result.Reason = ReasonTaken
	}

	return result, nil
}

// AllocateRandom returns a random slug of the requested length. Uniqueness is
// left to the repository; collisions surface as ErrAlreadyExists on create.
func (a *Allocator) AllocateRandom(length int) (string, error) {
	if length <= 0 {
		length = DefaultRandomLength
	}
	return a.randomString(slugAlphabet, length)
}

// AllocateFromTitle derives a readable slug from the title plus a short random suffix.
func (a *Allocator) AllocateFromTitle(title string) (string, error) {
	base := Normalize(title)
	if len(base) > maxTitleBaseLength {
		base = strings.TrimRight(base[:maxTitleBaseLength], string(slugSeparator))
	}
	if len(base) < MinSlugLength {
		return a.AllocateRandom(DefaultRandomLength)
	}

	suffix, err := a.randomString(lowerSlugAlphabet, titleSuffixLength)
	if err != nil {
		return "", err
	}

	return base + string(slugSeparator) + suffix, nil
}

func (a *Allocator) isReserved(slug string) bool {
	_, ok := a.reserved[slug]
	return ok
}

func (a *Allocator) randomString(alphabet string, length int) (string, error) {
	size := big.NewInt(int64(len(alphabet)))
	buf := make([]byte, length)
	for i := range buf {
		n, err := rand.Int(a.random, size)
		if err != nil {
			return "", eris.Wrap(err, "reading random bytes for slug")
		}
		buf[i] = alphabet[n.Int64()]
	}
	return string(buf), nil
}

func hasOnlySlugCharacters(raw string) bool {
	for _, r := range raw {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
		case strings.ContainsRune(acceptedPunctuation, r), unicode.IsSpace(r):
		default:
			return false
		}
	}
	return true
}
