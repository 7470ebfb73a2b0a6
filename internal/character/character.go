package character

import (
	"fmt"
	"os"
	"strings"
)

// Character holds the persona fields parsed from a profile file.
type Character struct {
	Name            string `json:"name"`
	Personality     string `json:"personality"`
	Background      string `json:"background"`
	Relationships   string `json:"relationships"`
	ExampleDialogue string `json:"example_dialogue"`
}

// LoadProfile parses a profile file into a Character. The file uses
// UPPERCASE field headers of the form "NAME: ..."; lines after a header
// belong to that field until the next header. NAME is required.
func LoadProfile(path string) (*Character, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile: %w", err)
	}
	return Parse(string(data))
}

// Parse parses profile text. See LoadProfile for the format.
func Parse(content string) (*Character, error) {
	fields := map[string]string{}
	known := map[string]bool{
		"name": true, "personality": true, "background": true,
		"relationships": true, "example_dialogue": true,
	}

	current := ""
	var lines []string
	flush := func() {
		if current != "" {
			fields[current] = strings.TrimSpace(strings.Join(lines, "\n"))
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, " \t\r")
		if name, rest, ok := strings.Cut(line, ":"); ok {
			header := strings.TrimSpace(name)
			if header != "" && header == strings.ToUpper(header) && header != strings.ToLower(header) {
				flush()
				current = strings.ToLower(header)
				if !known[current] {
					current = ""
					continue
				}
				lines = nil
				if v := strings.TrimSpace(rest); v != "" {
					lines = append(lines, v)
				}
				continue
			}
		}
		if current != "" {
			lines = append(lines, line)
		}
	}
	flush()

	if fields["name"] == "" {
		return nil, fmt.Errorf("required field NAME is missing from profile")
	}
	c := &Character{
		Name:            fields["name"],
		Personality:     fields["personality"],
		Background:      fields["background"],
		Relationships:   fields["relationships"],
		ExampleDialogue: fields["example_dialogue"],
	}
	if c.Personality == "" {
		c.Personality = "A unique character with a distinctive personality."
	}
	return c, nil
}

// SystemPrompt builds the persona system prompt sent with every
// generation request. The structure is part of the LLM contract.
func (c *Character) SystemPrompt() string {
	return fmt.Sprintf(`You are %s. Respond in character, maintaining their personality, speaking style, and mannerisms.

PERSONALITY: %s

BACKGROUND: %s

RELATIONSHIPS: %s

EXAMPLE DIALOGUE:
%s

Always stay in character. Your responses should reflect %s's voice, knowledge, and perspective.`,
		c.Name, c.Personality, c.Background, c.Relationships, c.ExampleDialogue, c.Name)
}
