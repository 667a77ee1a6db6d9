// Package governance validates and classifies smart codes.
//
// A smart code has the shape ROOT.SEGMENT[.SEGMENT...].vN, for example
// HERA.FIN.GL.TXN.JOURNAL.v1. The version suffix is a lower-case "v"
// followed by a positive integer.
package governance

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

const (
	CodeInvalidSmartCode       = "INVALID_SMART_CODE"
	CodeSmartCodeNotRegistered = "SMART_CODE_NOT_REGISTERED"
)

var (
	rootPattern    = regexp.MustCompile(`^[A-Z][A-Z0-9]*$`)
	segmentPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9_]*$`)
	versionPattern = regexp.MustCompile(`^v([1-9][0-9]*)$`)
)

// SmartCode is a parsed smart code
type SmartCode struct {
	Root     string
	Segments []string
	Version  int
}

// Parse validates the shape of raw and returns its parts
func Parse(raw string) (SmartCode, error) {
	parts := strings.Split(raw, ".")
	if len(parts) < 3 {
		return SmartCode{}, invalid(raw, "expected ROOT.SEGMENT.vN")
	}
	if !rootPattern.MatchString(parts[0]) {
		return SmartCode{}, invalid(raw, "root must be upper-case alphanumeric")
	}
	m := versionPattern.FindStringSubmatch(parts[len(parts)-1])
	if m == nil {
		return SmartCode{}, invalid(raw, "version suffix must be v<digits>")
	}
	version, err := strconv.Atoi(m[1])
	if err != nil {
		return SmartCode{}, invalid(raw, "version out of range")
	}
	segments := parts[1 : len(parts)-1]
	for _, seg := range segments {
		if !segmentPattern.MatchString(seg) {
			return SmartCode{}, invalid(raw, fmt.Sprintf("segment %q must be upper-case alphanumeric", seg))
		}
	}
	return SmartCode{
		Root:     parts[0],
		Segments: slices.Clone(segments),
		Version:  version,
	}, nil
}

// MustParse is Parse that panics, for constants
func MustParse(raw string) SmartCode {
	sc, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return sc
}

// String renders the canonical form
func (s SmartCode) String() string {
	return fmt.Sprintf("%s.v%d", s.Family(), s.Version)
}

// Family is the code without its version suffix
func (s SmartCode) Family() string {
	return s.Root + "." + strings.Join(s.Segments, ".")
}

// HasSegment reports whether seg appears among the segments
func (s SmartCode) HasSegment(seg string) bool {
	return slices.Contains(s.Segments, seg)
}

// FamilyOf strips the version from a well-formed code, returning raw unchanged otherwise
func FamilyOf(raw string) string {
	if sc, err := Parse(raw); err == nil {
		return sc.Family()
	}
	return raw
}

func invalid(raw, reason string) error {
	return shared.NewValidationError(CodeInvalidSmartCode, "invalid smart code %q: %s", raw, reason)
}
