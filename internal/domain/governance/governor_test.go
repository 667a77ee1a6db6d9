package governance

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

func TestParse(t *testing.T) {
	t.Run("valid codes", func(t *testing.T) {
		for _, raw := range []string{
			"HERA.FIN.GL.TXN.JOURNAL.v1",
			"HERA.CRM.CUST.ENT.PROF.v12",
			"APP.X.v1",
			"SALON.SVC_2.ITEM.v3",
		} {
			sc, err := Parse(raw)
			require.NoError(t, err, raw)
			assert.Equal(t, raw, sc.String())
		}
	})

	t.Run("parts", func(t *testing.T) {
		sc := MustParse("HERA.FIN.GL.TXN.v2")
		assert.Equal(t, "HERA", sc.Root)
		assert.Equal(t, []string{"FIN", "GL", "TXN"}, sc.Segments)
		assert.Equal(t, 2, sc.Version)
		assert.Equal(t, "HERA.FIN.GL.TXN", sc.Family())
	})

	t.Run("invalid codes", func(t *testing.T) {
		for _, raw := range []string{
			"",
			"HERA",
			"HERA.v1",
			"hera.FIN.v1",
			"HERA.fin.v1",
			"HERA.FIN.V1",
			"HERA.FIN.v0",
			"HERA.FIN.vx",
			"HERA..FIN.v1",
			"HERA.FIN.v1.",
			"HERA.FIN-X.v1",
		} {
			_, err := Parse(raw)
			require.Error(t, err, raw)
			var de *shared.DomainError
			require.True(t, errors.As(err, &de))
			assert.Equal(t, shared.KindValidation, de.Kind)
			assert.Equal(t, CodeInvalidSmartCode, de.Code)
		}
	})
}

func TestHeuristic(t *testing.T) {
	assert.Equal(t, KindGeneral, Heuristic(MustParse("HERA.CRM.CUST.v1")))
	assert.Equal(t, KindLedgerPosting, Heuristic(MustParse("HERA.FIN.GL.TXN.JOURNAL.v1")))
	assert.Equal(t, KindPeriodCloseOverride, Heuristic(MustParse("HERA.FIN.GL.YEAR_END.CLOSE.v1")))
	assert.Equal(t, KindPeriodCloseOverride, Heuristic(MustParse("HERA.FIN.GL.CLOSE.v1")))
	assert.True(t, KindPeriodCloseOverride.IsLedgerPosting())
	assert.False(t, KindGeneral.IsLedgerPosting())
}

func TestGovernor_Validate(t *testing.T) {
	org := uuid.New()
	other := uuid.New()

	registry := NewRegistry()
	require.NoError(t, registry.Register(
		Entry{Code: "HERA.FIN.GL.TXN.JOURNAL.v1"},
		Entry{Code: "HERA.CRM.CUST"},
		Entry{Code: "HERA.FIN.ADJ.v1", Kind: KindLedgerPosting},
	))
	require.NoError(t, registry.RegisterForOrganization(org, Entry{Code: "SALON.SVC.ITEM.v1"}))

	t.Run("strict accepts registered code", func(t *testing.T) {
		g := NewGovernor(registry, ModeStrict)
		c, err := g.Validate(org, "HERA.FIN.GL.TXN.JOURNAL.v1")
		require.NoError(t, err)
		assert.True(t, c.Registered)
		assert.Equal(t, KindLedgerPosting, c.Kind)
		assert.Empty(t, c.Warnings)
	})

	t.Run("family entry matches any version", func(t *testing.T) {
		g := NewGovernor(registry, ModeStrict)
		c, err := g.Validate(org, "HERA.CRM.CUST.v7")
		require.NoError(t, err)
		assert.True(t, c.Registered)
	})

	t.Run("catalog kind overrides heuristic", func(t *testing.T) {
		g := NewGovernor(registry, ModeStrict)
		c, err := g.Validate(org, "HERA.FIN.ADJ.v1")
		require.NoError(t, err)
		assert.Equal(t, KindLedgerPosting, c.Kind)
	})

	t.Run("organization catalog is private", func(t *testing.T) {
		g := NewGovernor(registry, ModeStrict)
		_, err := g.Validate(org, "SALON.SVC.ITEM.v1")
		require.NoError(t, err)

		_, err = g.Validate(other, "SALON.SVC.ITEM.v1")
		require.Error(t, err)
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})

	t.Run("strict rejects unknown code", func(t *testing.T) {
		g := NewGovernor(registry, ModeStrict)
		_, err := g.Validate(org, "HERA.UNKNOWN.THING.v1")
		var de *shared.DomainError
		require.True(t, errors.As(err, &de))
		assert.Equal(t, CodeSmartCodeNotRegistered, de.Code)
	})

	t.Run("advisory accepts unknown code with warning", func(t *testing.T) {
		g := NewGovernor(registry, ModeAdvisory)
		c, err := g.Validate(org, "HERA.UNKNOWN.GL.v1")
		require.NoError(t, err)
		assert.False(t, c.Registered)
		assert.Equal(t, KindLedgerPosting, c.Kind)
		assert.Len(t, c.Warnings, 1)
	})

	t.Run("malformed code fails in any mode", func(t *testing.T) {
		g := NewGovernor(nil, ModeAdvisory)
		_, err := g.Validate(org, "not-a-code")
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})

	t.Run("invalid catalog entry", func(t *testing.T) {
		r := NewRegistry()
		assert.Error(t, r.Register(Entry{Code: "bad code"}))
		assert.Error(t, r.Register(Entry{Code: "HERA.X.v1", Kind: "NOPE"}))
		assert.Error(t, r.RegisterForOrganization(uuid.Nil, Entry{Code: "HERA.X.v1"}))
	})
}

func TestParseMode(t *testing.T) {
	assert.Equal(t, ModeStrict, ParseMode("STRICT"))
	assert.Equal(t, ModeAdvisory, ParseMode("advisory"))
	assert.Equal(t, ModeAdvisory, ParseMode(""))
}
