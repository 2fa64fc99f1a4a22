package dice_test

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"pgregory.net/rapid"

	"github.com/cory-johannsen/duel/internal/game/dice"
)

func TestRollResult_Total(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, 12, r.Total())
}

func TestRollResult_String(t *testing.T) {
	r := dice.RollResult{Expression: "2d6+3", Dice: []int{4, 5}, Modifier: 3}
	assert.Equal(t, "2d6+3 → [4 5] +3 = 12", r.String())
}

func TestRollResult_String_PanicsOnEmptyExpression(t *testing.T) {
	r := dice.RollResult{Dice: []int{4}}
	assert.Panics(t, func() { _ = r.String() })
}

func TestRollResult_Natural_PanicsWithoutDice(t *testing.T) {
	assert.Panics(t, func() { _ = dice.RollResult{Expression: "d20"}.Natural() })
}

func TestRollResult_Total_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		faces := rapid.SliceOf(rapid.IntRange(1, 20)).Draw(rt, "dice")
		modifier := rapid.IntRange(-100, 100).Draw(rt, "modifier")
		r := dice.RollResult{Expression: "Nd20+M", Dice: faces, Modifier: modifier}

		expected := modifier
		for _, d := range faces {
			expected += d
		}
		assert.Equal(rt, expected, r.Total())
		assert.True(rt, strings.Contains(r.String(), fmt.Sprintf("= %d", expected)))
	})
}

func TestCryptoSource_Intn_InRange(t *testing.T) {
	src := dice.NewCryptoSource()
	for i := 0; i < 1000; i++ {
		v := src.Intn(20)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 20)
	}
}

func TestSources_PanicOnZero(t *testing.T) {
	assert.Panics(t, func() { dice.NewCryptoSource().Intn(0) })
	assert.Panics(t, func() { dice.NewSeededSource(1).Intn(0) })
}

func TestSeededSource_Deterministic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Int64().Draw(rt, "seed")
		a, b := dice.NewSeededSource(seed), dice.NewSeededSource(seed)
		for i := 0; i < 50; i++ {
			assert.Equal(rt, a.Intn(20), b.Intn(20))
		}
	})
}

// TestD20_Uniform checks every face of a d20 appears within tolerance of 1/20
// over a large sample, for both sources.
func TestD20_Uniform(t *testing.T) {
	const n = 20000
	sources := map[string]dice.Source{
		"crypto": dice.NewCryptoSource(),
		"seeded": dice.NewSeededSource(dice.NewSeed()),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			counts := make(map[int]int, 20)
			for i := 0; i < n; i++ {
				face := dice.Roll(dice.D20, src).Natural()
				require.GreaterOrEqual(t, face, 1)
				require.LessOrEqual(t, face, 20)
				counts[face]++
			}
			require.Len(t, counts, 20)
			// expected 1000 per face; sd ~= 30.8, allow well over 5 sd
			for face, c := range counts {
				assert.InDelta(t, n/20, c, 200, "face %d frequency %d", face, c)
			}
		})
	}
}

func TestParse(t *testing.T) {
	cases := []struct {
		in    string
		count int
		sides int
		mod   int
	}{
		{"d20", 1, 20, 0},
		{"2d6", 2, 6, 0},
		{"d20+3", 1, 20, 3},
		{"4D8-2", 4, 8, -2},
	}
	for _, tc := range cases {
		e, err := dice.Parse(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.count, e.Count, tc.in)
		assert.Equal(t, tc.sides, e.Sides, tc.in)
		assert.Equal(t, tc.mod, e.Modifier, tc.in)
		assert.Equal(t, tc.in, e.Raw)
	}
}

func TestParse_Errors(t *testing.T) {
	for _, in := range []string{"", "20", "0d6", "xd6", "d1", "d-5", "d6+x"} {
		_, err := dice.Parse(in)
		assert.Error(t, err, "expected error for %q", in)
	}
	assert.Panics(t, func() { dice.MustParse("nope") })
}

type fixedSrc struct{ val int }

func (f fixedSrc) Intn(_ int) int { return f.val }

func TestRoller_RollExprParsesAndLogs(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	roller := dice.NewLoggedRoller(fixedSrc{val: 2}, zap.New(core))

	r, err := roller.RollExpr("3d6+1")
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3, 3}, r.Dice)
	assert.Equal(t, 10, r.Total())
	assert.Equal(t, 1, logs.FilterMessage("dice roll").Len())

	_, err = roller.RollExpr("nope")
	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("dice roll").Len(), "unparsable expressions roll nothing")
}

func TestRoller_LogsEveryRoll(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	roller := dice.NewLoggedRoller(fixedSrc{val: 19}, zap.New(core))

	assert.Equal(t, 20, roller.D20())
	entries := logs.FilterMessage("dice roll").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "d20", fields["expression"])
	assert.Equal(t, int64(20), fields["total"])
}

func TestRoller_IntnSharesSource(t *testing.T) {
	roller := dice.NewLoggedRoller(fixedSrc{val: 1}, zap.NewNop())
	assert.Equal(t, 1, roller.Intn(2))
}

func TestNewNamedSource(t *testing.T) {
	src, seed, err := dice.NewNamedSource("crypto", 42)
	require.NoError(t, err)
	assert.Zero(t, seed)
	assert.NotNil(t, src)

	a, seed, err := dice.NewNamedSource("seeded", 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), seed)
	b := dice.NewSeededSource(42)
	for i := 0; i < 20; i++ {
		assert.Equal(t, b.Intn(20), a.Intn(20))
	}

	_, seed, err = dice.NewNamedSource("seeded", 0)
	require.NoError(t, err)
	assert.NotZero(t, seed)

	_, _, err = dice.NewNamedSource("loaded", 1)
	assert.Error(t, err)
}
