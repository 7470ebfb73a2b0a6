package character

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleProfile = `NAME: Elara Moss
PERSONALITY: Dry-witted archivist, speaks in precise sentences.
Curious about everything mechanical.
BACKGROUND: Grew up in the lighthouse district.
RELATIONSHIPS: Estranged brother Tomas, mentor Prof. Wren.
EXAMPLE_DIALOGUE:
"Facts first, feelings after."
"I catalogue, therefore I am."
`

func TestParseProfile(t *testing.T) {
	c, err := Parse(sampleProfile)
	require.NoError(t, err)
	assert.Equal(t, "Elara Moss", c.Name)
	assert.Equal(t, "Dry-witted archivist, speaks in precise sentences.\nCurious about everything mechanical.", c.Personality)
	assert.Equal(t, "Grew up in the lighthouse district.", c.Background)
	assert.Equal(t, "Estranged brother Tomas, mentor Prof. Wren.", c.Relationships)
	assert.Contains(t, c.ExampleDialogue, "Facts first")
	assert.Contains(t, c.ExampleDialogue, "catalogue")
}

func TestParseRequiresName(t *testing.T) {
	_, err := Parse("PERSONALITY: cheerful\n")
	assert.Error(t, err)
}

func TestParseDefaultsPersonality(t *testing.T) {
	c, err := Parse("NAME: Bob\n")
	require.NoError(t, err)
	assert.Equal(t, "A unique character with a distinctive personality.", c.Personality)
	assert.Empty(t, c.Background)
}

func TestParseIgnoresLowercaseColons(t *testing.T) {
	c, err := Parse("NAME: Bob\nBACKGROUND: note: this colon stays\nstill background\n")
	require.NoError(t, err)
	assert.Equal(t, "note: this colon stays\nstill background", c.Background)
}

func TestLoadProfile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "profile.txt")
	require.NoError(t, os.WriteFile(path, []byte(sampleProfile), 0o644))

	c, err := LoadProfile(path)
	require.NoError(t, err)
	assert.Equal(t, "Elara Moss", c.Name)

	_, err = LoadProfile(filepath.Join(dir, "absent.txt"))
	assert.Error(t, err)
}

func TestSystemPromptStructure(t *testing.T) {
	c, err := Parse(sampleProfile)
	require.NoError(t, err)

	prompt := c.SystemPrompt()
	assert.Contains(t, prompt, "You are Elara Moss.")
	// ordering is part of the LLM contract
	personality := "PERSONALITY: " + c.Personality
	background := "BACKGROUND: " + c.Background
	assert.Less(t, indexOf(t, prompt, personality), indexOf(t, prompt, background))
	assert.Less(t, indexOf(t, prompt, background), indexOf(t, prompt, "RELATIONSHIPS: "))
	assert.Less(t, indexOf(t, prompt, "RELATIONSHIPS: "), indexOf(t, prompt, "EXAMPLE DIALOGUE:"))
	assert.Contains(t, prompt, "Elara Moss's voice")
}

func indexOf(t *testing.T, haystack, needle string) int {
	t.Helper()
	idx := strings.Index(haystack, needle)
	require.GreaterOrEqual(t, idx, 0, "missing %q", needle)
	return idx
}
