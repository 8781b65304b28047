package pipeline

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/daydemir/ralph-orchestrator/internal/planio"
)

// scanDir lists every ".md" file directly under dir, parsed as an Item of
// the given type. Malformed items (missing "## Status:") are skipped with
// their error surfaced to the caller for logging, rather than aborting the
// whole scan — one bad backlog file must not wedge the pipeline.
func scanDir(dir string, itemType planio.ItemType) ([]*planio.Item, []error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, []error{err}
	}

	var items []*planio.Item
	var errs []error
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".md") {
			continue
		}
		item, err := planio.ParseItem(filepath.Join(dir, e.Name()), itemType)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		items = append(items, item)
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Slug < items[j].Slug })
	return items, errs
}

// ScanBacklog produces the prioritized, filtered item list of spec 4.2.1
// step 4: defects first, then features, then analyses, alphabetical within
// each type; excluding non-Open items, items already tracked as
// completed/failed, items with an unanswered suspension marker under
// .claude/suspended/, and items whose declared dependencies are not yet
// completed (computed lazily against the tracked completed-slug set, since a
// dependency may be a slug the scanner hasn't gotten to yet this pass).
func ScanBacklog(cfg *Config, state *trackingState) ([]*planio.Item, []error) {
	var all []*planio.Item
	var errs []error

	for _, d := range []struct {
		dir string
		typ planio.ItemType
	}{
		{cfg.DefectBacklogDir, planio.ItemDefect},
		{cfg.FeatureBacklogDir, planio.ItemFeature},
		{cfg.AnalysisBacklogDir, planio.ItemAnalysis},
	} {
		items, e := scanDir(d.dir, d.typ)
		all = append(all, items...)
		errs = append(errs, e...)
	}

	var eligible []*planio.Item
	for _, item := range all {
		if !item.IsOpen() {
			continue
		}
		if state.isDone(item.Slug) {
			continue
		}
		if !dependenciesSatisfied(item, state) {
			continue
		}
		if m, _ := planio.LoadSuspensionMarker(filepath.Join(cfg.ProjectRoot, ".claude", "suspended", item.Slug+".json")); m != nil && !m.IsAnswered() {
			continue
		}
		eligible = append(eligible, item)
	}

	return eligible, errs
}

func dependenciesSatisfied(item *planio.Item, state *trackingState) bool {
	for _, dep := range item.Dependencies {
		if !state.CompletedSlugs[dep] {
			return false
		}
	}
	return true
}
