package company

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractMarkerWellFormed(t *testing.T) {
	t.Parallel()

	text := "pre |||working-plan [1,2] |||working-plan post"
	assert.Equal(t, "[1,2]", ExtractMarker("working-plan", text))
}

func TestExtractMarkerFirstPairOnly(t *testing.T) {
	t.Parallel()

	text := "|||next-step one |||next-step |||next-step two |||next-step"
	assert.Equal(t, "one", ExtractMarker("next-step", text))
}

func TestExtractMarkerNoPair(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", ExtractMarker("working-plan", "no markers here"))
	// opening token without a closing one
	assert.Equal(t, "", ExtractMarker("working-plan", "|||working-plan dangling"))
	assert.Equal(t, "", ExtractMarker("working-plan", ""))
}

func TestExtractMarkerTrimsWhitespace(t *testing.T) {
	t.Parallel()

	text := "|||next-employee\n  {\"name\": \"Alice\"}\n|||next-employee"
	assert.Equal(t, `{"name": "Alice"}`, ExtractMarker("next-employee", text))
}

func TestExtractMarkerIdempotent(t *testing.T) {
	t.Parallel()

	text := "|||select-agent {\"name\": \"x\"} |||select-agent"
	once := ExtractMarker("select-agent", text)
	assert.Equal(t, once, ExtractMarker("select-agent", "|||select-agent "+once+" |||select-agent"))
}

func TestExtractMarkerRejectsUnsafeTags(t *testing.T) {
	t.Parallel()

	text := "|||a.b payload |||a.b"
	assert.Equal(t, "", ExtractMarker("a.b", text))
	assert.Equal(t, "", ExtractMarker("UPPER", "|||UPPER x |||UPPER"))
	assert.Equal(t, "", ExtractMarker("-leading", "|||-leading x |||-leading"))
	assert.Equal(t, "", ExtractMarker("", "|| x ||"))
}
