// Package booth parses and normalizes polling-booth identifiers.
//
// Three textual grammars are accepted on read, all encoding the same
// (constituency, booth number) pair:
//
//	BOOTH<n>-<tenantId>             canonical, produced on write
//	ac<tenantId><booth, 3 digits>   compact roster-import form
//	voter-booth-<tenantId>-<n>      legacy mobile-app form
//
// Parsing is purely syntactic; whether the decoded constituency is actually
// covered by the campaign is the caller's concern.
package booth

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

// ErrUnrecognized is returned when an identifier matches none of the accepted
// grammars.
var ErrUnrecognized = errors.New("booth: unrecognized identifier format")

var (
	reCanonical = regexp.MustCompile(`^BOOTH([0-9]+)-([0-9]+)$`)
	reCompact   = regexp.MustCompile(`^ac([0-9]+)([0-9]{3})$`)
	reLegacy    = regexp.MustCompile(`^voter-booth-([0-9]+)-([0-9]+)$`)
)

// Ref identifies one polling booth: a constituency and a booth number local
// to it.
type Ref struct {
	TenantID int
	Number   int
}

// String returns the canonical encoding, BOOTH<n>-<tenantId>.
func (r Ref) String() string {
	return fmt.Sprintf("BOOTH%d-%d", r.Number, r.TenantID)
}

// Parse decodes a booth identifier in any accepted grammar.
// Returns ErrUnrecognized if the input matches none of them.
func Parse(s string) (Ref, error) {
	if m := reCanonical.FindStringSubmatch(s); m != nil {
		return newRef(m[2], m[1])
	}
	if m := reCompact.FindStringSubmatch(s); m != nil {
		return newRef(m[1], m[2])
	}
	if m := reLegacy.FindStringSubmatch(s); m != nil {
		return newRef(m[1], m[2])
	}
	return Ref{}, fmt.Errorf("%w: %q", ErrUnrecognized, s)
}

// MustParse is like Parse but panics on error. Use for hardcoded ids.
func MustParse(s string) Ref {
	r, err := Parse(s)
	if err != nil {
		panic(fmt.Sprintf("booth: must parse %q: %v", s, err))
	}
	return r
}

// Normalize maps an identifier in any accepted grammar to the canonical form.
// Normalizing an already-canonical identifier returns it unchanged.
func Normalize(s string) (string, error) {
	r, err := Parse(s)
	if err != nil {
		return "", err
	}
	return r.String(), nil
}

func newRef(tenant, number string) (Ref, error) {
	tid, err := strconv.Atoi(tenant)
	if err != nil {
		return Ref{}, fmt.Errorf("booth: tenant id %q: %w", tenant, err)
	}
	n, err := strconv.Atoi(number)
	if err != nil {
		return Ref{}, fmt.Errorf("booth: booth number %q: %w", number, err)
	}
	return Ref{TenantID: tid, Number: n}, nil
}
