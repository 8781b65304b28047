package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/daydemir/ralph-orchestrator/internal/agent"
	"github.com/daydemir/ralph-orchestrator/internal/llm"
)

var classificationPattern = regexp.MustCompile(`(?im)^##\s*Classification\s*\n+(feature|defect)\s*$`)

// IngestIdeas classifies every raw file in the ideas directory into a
// feature or defect backlog item and moves the original to processed/ (spec
// 4.2.1 step 1: "one-shot agent classifies each raw file... then moves the
// original to processed/").
func IngestIdeas(ctx context.Context, cfg *Config, claude llm.Backend) error {
	entries, err := os.ReadDir(cfg.IdeasDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read ideas dir %s: %w", cfg.IdeasDir, err)
	}

	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ideaPath := filepath.Join(cfg.IdeasDir, e.Name())
		if err := classifyIdea(ctx, cfg, claude, ideaPath); err != nil {
			return fmt.Errorf("classify idea %s: %w", e.Name(), err)
		}
	}
	return nil
}

func classifyIdea(ctx context.Context, cfg *Config, claude llm.Backend, ideaPath string) error {
	raw, err := os.ReadFile(ideaPath)
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf(
		"Classify the following raw idea as either a feature or a defect and produce a backlog item "+
			"markdown body with a \"## Classification\" section (exactly \"feature\" or \"defect\"), a "+
			"\"## Status: Open\" line, a title, and a description.\n\nRaw idea:\n\n%s", string(raw),
	)
	body, err := runOneShotSession(ctx, claude, cfg, agent.ProfileDesign, prompt, "sonnet")
	if err != nil {
		return err
	}

	classification := "feature"
	if m := classificationPattern.FindStringSubmatch(body); m != nil {
		classification = strings.ToLower(m[1])
	}

	destDir := cfg.FeatureBacklogDir
	if classification == "defect" {
		destDir = cfg.DefectBacklogDir
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return err
	}

	slug := NextSlug(destDir, Slugify(filepath.Base(ideaPath)))
	destPath := filepath.Join(destDir, slug+".md")
	if err := os.WriteFile(destPath, []byte(body), 0o644); err != nil {
		return fmt.Errorf("write backlog item %s: %w", destPath, err)
	}

	if err := os.MkdirAll(filepath.Join(cfg.IdeasDir, "processed"), 0o755); err != nil {
		return err
	}
	processedPath := filepath.Join(cfg.IdeasDir, "processed", filepath.Base(ideaPath))
	return os.Rename(ideaPath, processedPath)
}

// NextSlug numeric-prefixes a slug so backlog items retain a stable
// alphabetical/processing order (spec 4.3.4's "numeric-prefixed slug"
// applies equally here); exported so internal/bridge's own backlog-item
// creation (5-Whys intake) stays consistent with the pipeline's own.
func NextSlug(dir, base string) string {
	entries, _ := os.ReadDir(dir)
	max := 0
	for _, e := range entries {
		name := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		if m := slugPrefixRe.FindStringSubmatch(name); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > max {
				max = n
			}
		}
	}
	return fmt.Sprintf("%04d-%s", max+1, base)
}

var slugPrefixRe = regexp.MustCompile(`^(\d+)[-_]`)

// Slugify lowercases and dash-separates name into a filesystem-safe slug.
func Slugify(name string) string {
	name = strings.TrimSuffix(name, filepath.Ext(name))
	name = strings.ToLower(name)
	var b strings.Builder
	prevDash := false
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
