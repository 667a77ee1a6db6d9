package governance

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

// Kind is the behavioural class of a smart code
type Kind string

const (
	KindGeneral             Kind = "GENERAL"
	KindLedgerPosting       Kind = "LEDGER_POSTING"
	KindPeriodCloseOverride Kind = "PERIOD_CLOSE_OVERRIDE"
)

// IsValid checks if the kind is known
func (k Kind) IsValid() bool {
	switch k {
	case KindGeneral, KindLedgerPosting, KindPeriodCloseOverride:
		return true
	}
	return false
}

// IsLedgerPosting reports whether lines must balance
func (k Kind) IsLedgerPosting() bool {
	return k == KindLedgerPosting || k == KindPeriodCloseOverride
}

// Mode controls how unregistered codes are treated
type Mode string

const (
	ModeStrict   Mode = "strict"
	ModeAdvisory Mode = "advisory"
)

// ParseMode parses a mode string, defaulting to advisory
func ParseMode(s string) Mode {
	if strings.EqualFold(strings.TrimSpace(s), string(ModeStrict)) {
		return ModeStrict
	}
	return ModeAdvisory
}

// Classification is the result of validating a smart code
type Classification struct {
	Code       SmartCode
	Kind       Kind
	Registered bool
	Warnings   []string
}

// Heuristic classifies a parsed code by its segments
func Heuristic(sc SmartCode) Kind {
	if !sc.HasSegment("GL") {
		return KindGeneral
	}
	if sc.HasSegment("YEAR_END") || sc.HasSegment("CLOSE") {
		return KindPeriodCloseOverride
	}
	return KindLedgerPosting
}

// Entry is one registered code or family
type Entry struct {
	Code        string
	Kind        Kind
	Description string
}

// Registry holds the global and per-organization catalogs
type Registry struct {
	mu     sync.RWMutex
	global map[string]Entry
	orgs   map[uuid.UUID]map[string]Entry
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		global: make(map[string]Entry),
		orgs:   make(map[uuid.UUID]map[string]Entry),
	}
}

// Register adds entries to the global catalog.
// An entry without a version suffix registers the whole family.
func (r *Registry) Register(entries ...Entry) error {
	return r.register(uuid.Nil, entries)
}

// RegisterForOrganization adds entries visible to one organization only
func (r *Registry) RegisterForOrganization(organizationID uuid.UUID, entries ...Entry) error {
	if organizationID == uuid.Nil {
		return shared.ErrOrganizationRequired
	}
	return r.register(organizationID, entries)
}

func (r *Registry) register(organizationID uuid.UUID, entries []Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	target := r.global
	if organizationID != uuid.Nil {
		if r.orgs[organizationID] == nil {
			r.orgs[organizationID] = make(map[string]Entry)
		}
		target = r.orgs[organizationID]
	}
	for _, e := range entries {
		key, err := catalogKey(e.Code)
		if err != nil {
			return err
		}
		if e.Kind != "" && !e.Kind.IsValid() {
			return shared.NewValidationError(CodeInvalidSmartCode, "unknown kind %q for %s", e.Kind, e.Code)
		}
		e.Code = key
		target[key] = e
	}
	return nil
}

// catalogKey accepts a full code or a family (a code without the version)
func catalogKey(code string) (string, error) {
	if sc, err := Parse(code); err == nil {
		return sc.String(), nil
	}
	if _, err := Parse(code + ".v1"); err == nil {
		return code, nil
	}
	return "", shared.NewValidationError(CodeInvalidSmartCode, "invalid catalog entry %q", code)
}

// Lookup finds the entry for sc, trying organization then global, exact then family
func (r *Registry) Lookup(organizationID uuid.UUID, sc SmartCode) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, key := range []string{sc.String(), sc.Family()} {
		if org, ok := r.orgs[organizationID]; ok {
			if e, ok := org[key]; ok {
				return e, true
			}
		}
		if e, ok := r.global[key]; ok {
			return e, true
		}
	}
	return Entry{}, false
}

// Len returns the number of registered entries across all catalogs
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n := len(r.global)
	for _, m := range r.orgs {
		n += len(m)
	}
	return n
}

// Governor validates smart codes against the registry
type Governor struct {
	registry *Registry
	mode     Mode
}

// NewGovernor creates a governor; a nil registry behaves as an empty catalog
func NewGovernor(registry *Registry, mode Mode) *Governor {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Governor{registry: registry, mode: mode}
}

// Mode returns the enforcement mode
func (g *Governor) Mode() Mode {
	return g.mode
}

// Validate parses and classifies code for the organization.
// In strict mode an unregistered code is a ValidationError; in advisory mode
// it is accepted with a warning.
func (g *Governor) Validate(organizationID uuid.UUID, code string) (Classification, error) {
	sc, err := Parse(code)
	if err != nil {
		return Classification{}, err
	}
	c := Classification{Code: sc, Kind: Heuristic(sc)}
	entry, ok := g.registry.Lookup(organizationID, sc)
	if ok {
		c.Registered = true
		if entry.Kind != "" {
			c.Kind = entry.Kind
		}
		return c, nil
	}
	if g.mode == ModeStrict {
		return Classification{}, shared.NewValidationError(CodeSmartCodeNotRegistered, "smart code %s is not registered", code)
	}
	c.Warnings = append(c.Warnings, fmt.Sprintf("smart code %s is not registered", code))
	return c, nil
}
