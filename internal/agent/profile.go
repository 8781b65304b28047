package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ProfileFrontmatter is the YAML frontmatter block at the top of a
// .claude/agents/<role>.md file (spec 6).
type ProfileFrontmatter struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Model       string `yaml:"model,omitempty"`
}

// Profile is a loaded role markdown file: frontmatter plus body.
type Profile struct {
	Frontmatter ProfileFrontmatter
	Body        string
}

// LoadProfile reads .claude/agents/<role>.md, splitting frontmatter from
// body the way state.ParsePlanFrontmatter splits a plan's leading "---"
// block, generalized to tolerate a profile with no frontmatter at all (the
// body is then used verbatim).
func LoadProfile(agentsDir string, role Role) (*Profile, error) {
	path := filepath.Join(agentsDir, string(role)+".md")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read agent profile %s: %w", path, err)
	}

	text := string(data)
	if !strings.HasPrefix(text, "---") {
		return &Profile{Body: text}, nil
	}

	end := strings.Index(text[3:], "---")
	if end == -1 {
		return &Profile{Body: text}, nil
	}

	yamlContent := text[3 : 3+end]
	body := strings.TrimLeft(text[3+end+3:], "\n")

	var fm ProfileFrontmatter
	if err := yaml.Unmarshal([]byte(yamlContent), &fm); err != nil {
		return nil, fmt.Errorf("invalid frontmatter in %s: %w", path, err)
	}

	return &Profile{Frontmatter: fm, Body: body}, nil
}
