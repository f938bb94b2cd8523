package company

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestParsePlanRoundTrip(t *testing.T) {
	t.Parallel()

	raw := `Here is my reasoning...
|||working-plan
[
    {"name": "A", "sub_task": "x"},
    {"name": "B", "sub_task": "y"},
    {"name": "C", "sub_task": "z"}
]
|||working-plan
That is the plan.`

	plan, err := ParsePlan(raw)
	require.NoError(t, err)
	require.Equal(t, 3, plan.Len())

	a, ok := plan.Node("A")
	require.True(t, ok)
	assert.Equal(t, PositionStart, a.Position)
	assert.Equal(t, []string{"B"}, a.Next)

	b, _ := plan.Node("B")
	assert.Equal(t, PositionInProgress, b.Position)
	assert.Equal(t, []string{"C"}, b.Next)

	c, _ := plan.Node("C")
	assert.Equal(t, PositionEnd, c.Position)
	assert.Empty(t, c.Next)

	assert.Equal(t, "A", plan.Start().Name)
}

func TestParsePlanSingleNode(t *testing.T) {
	t.Parallel()

	plan, err := ParsePlan(`|||working-plan [{"name":"solo","sub_task":"all of it"}] |||working-plan`)
	require.NoError(t, err)
	require.Equal(t, 1, plan.Len())

	n := plan.Start()
	// a one-step plan's node is simultaneously start and end
	assert.Equal(t, PositionEnd, n.Position)
	assert.Empty(t, n.Next)
}

func TestParsePlanRepairsTeXBackslashes(t *testing.T) {
	t.Parallel()

	raw := `|||working-plan [{"name":"solver","sub_task":"prove \alpha \times 3 = 3\alpha"}] |||working-plan`
	plan, err := ParsePlan(raw)
	require.NoError(t, err)
	assert.Equal(t, `prove \alpha \times 3 = 3\alpha`, plan.Start().SubTask)
}

func TestParsePlanRepairsTeXUnderline(t *testing.T) {
	t.Parallel()

	raw := `|||working-plan [{"name":"solver","sub_task":"simplify \underline{x} + \underbrace{y}"}] |||working-plan`
	plan, err := ParsePlan(raw)
	require.NoError(t, err)
	assert.Equal(t, `simplify \underline{x} + \underbrace{y}`, plan.Start().SubTask)
}

func TestParsePlanIgnoresExtraFields(t *testing.T) {
	t.Parallel()

	raw := `|||working-plan [{"name":"A","sub_task":"x","priority":"high"}] |||working-plan`
	plan, err := ParsePlan(raw)
	require.NoError(t, err)
	assert.Equal(t, "x", plan.Start().SubTask)
}

func TestParsePlanErrors(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		raw  string
	}{
		{"no marker", `just some text`},
		{"malformed json", `|||working-plan [{"name": |||working-plan`},
		{"empty array", `|||working-plan [] |||working-plan`},
		{"missing name", `|||working-plan [{"sub_task":"x"}] |||working-plan`},
		{"missing sub_task", `|||working-plan [{"name":"A"}] |||working-plan`},
		{"duplicate names", `|||working-plan [{"name":"A","sub_task":"x"},{"name":"A","sub_task":"y"}] |||working-plan`},
		{"object instead of array", `|||working-plan {"name":"A","sub_task":"x"} |||working-plan`},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParsePlan(tc.raw)
			require.Error(t, err)
		})
	}
}

func TestBuildPlanEmpty(t *testing.T) {
	t.Parallel()

	_, err := BuildPlan(nil)
	assert.ErrorIs(t, err, ErrEmptyPlan)
}

func TestRepairBackslashes(t *testing.T) {
	t.Parallel()

	// already-escaped sequences survive untouched
	assert.Equal(t, `a \\ b \" c`, RepairBackslashes(`a \\ b \" c`))
	// TeX commands get doubled, including ones colliding with short escapes
	assert.Equal(t, `\\alpha \\times \\beta`, RepairBackslashes(`\alpha \times \beta`))
	// \u survives only with four hex digits; TeX commands starting with u do not
	assert.Equal(t, `\u00e9`, RepairBackslashes(`\u00e9`))
	assert.Equal(t, `\\underline{x}`, RepairBackslashes(`\underline{x}`))
	assert.Equal(t, `\\upsilon`, RepairBackslashes(`\upsilon`))
	assert.Equal(t, `\\u12`, RepairBackslashes(`\u12`))
	// trailing backslash
	assert.Equal(t, `x\\`, RepairBackslashes(`x\`))
	// idempotent on already-repaired input
	once := RepairBackslashes(`\alpha`)
	assert.Equal(t, once, RepairBackslashes(once))
}

// Position and linking invariants hold for every plan length.
func TestPlanInvariantsProperty(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(rt, "n")
		steps := make([]PlanStep, n)
		for i := range steps {
			steps[i] = PlanStep{
				Name:    fmt.Sprintf("agent-%d", i),
				SubTask: fmt.Sprintf("task %d", i),
			}
		}

		plan, err := BuildPlan(steps)
		require.NoError(rt, err)

		starts, ends := 0, 0
		nodes := plan.Nodes()
		for i, node := range nodes {
			switch node.Position {
			case PositionStart:
				starts++
			case PositionEnd:
				ends++
			}
			if node.Position == PositionEnd {
				assert.Empty(rt, node.Next)
			} else {
				require.Len(rt, node.Next, 1)
				assert.Equal(rt, nodes[i+1].Name, node.Next[0])
			}
		}
		if n == 1 {
			// the sole node is both start and end, tagged end
			assert.Equal(rt, PositionEnd, nodes[0].Position)
		} else {
			assert.Equal(rt, 1, starts)
		}
		assert.Equal(rt, 1, ends)
	})
}

func TestPlanMarshalJSONKeepsOrder(t *testing.T) {
	t.Parallel()

	plan, err := BuildPlan([]PlanStep{
		{Name: "first", SubTask: "a"},
		{Name: "second", SubTask: "b"},
	})
	require.NoError(t, err)

	data, err := plan.MarshalJSON()
	require.NoError(t, err)
	assert.Less(t, strings.Index(string(data), "first"), strings.Index(string(data), "second"))
}
