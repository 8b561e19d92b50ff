package install

import (
	"bytes"
	"os"
	"path/filepath"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/logging"
)

// PatchRule replaces every occurrence of Find in File (relative to the
// package directory) with Replace.
type PatchRule struct {
	File    string
	Find    string
	Replace string
}

// DefaultPatchRules neutralize the package's own cache and local-storage
// wipes so a reused install keeps its login state.
var DefaultPatchRules = []PatchRule{
	{
		File:    "background.js",
		Find:    "chrome.browsingData.removeCache({})",
		Replace: "Promise.resolve()",
	},
	{
		File:    "static/js/main.js",
		Find:    "localStorage.clear()",
		Replace: "void 0",
	},
}

// PatchReport summarizes a Patch run.
type PatchReport struct {
	Patched      []string // files rewritten
	Replacements int
	Missing      int // rule files absent from the package
	Failed       int // read or write failures
}

// Patcher applies PatchRules to an installed package.
type Patcher struct {
	Rules  []PatchRule
	Logger logging.Logger
}

// NewPatcher creates a Patcher. Nil rules select DefaultPatchRules.
func NewPatcher(rules []PatchRule, log logging.Logger) *Patcher {
	if rules == nil {
		rules = DefaultPatchRules
	}
	return &Patcher{Rules: rules, Logger: log}
}

// Patch applies every rule to dir. Failures are logged and counted, never
// returned.
func (p *Patcher) Patch(dir string) PatchReport {
	log := logging.OrNop(p.Logger)
	var report PatchReport

	// Rules are grouped per file so each file is rewritten at most once.
	order := []string{}
	byFile := map[string][]PatchRule{}
	for _, r := range p.Rules {
		if r.File == "" || r.Find == "" {
			continue
		}
		if _, seen := byFile[r.File]; !seen {
			order = append(order, r.File)
		}
		byFile[r.File] = append(byFile[r.File], r)
	}

	for _, file := range order {
		rel, ok := enclosedPath(file)
		if !ok {
			log.Warn("patch target outside package", "component", "patch", "file", file)
			report.Failed++
			continue
		}
		path := filepath.Join(dir, rel)

		data, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			log.Debug("patch target missing", "component", "patch", "file", file)
			report.Missing++
			continue
		}
		if err != nil {
			log.Warn("failed to read patch target", "component", "patch", "file", file, "error", err)
			report.Failed++
			continue
		}

		count := 0
		for _, r := range byFile[file] {
			n := bytes.Count(data, []byte(r.Find))
			if n == 0 {
				continue
			}
			data = bytes.ReplaceAll(data, []byte(r.Find), []byte(r.Replace))
			count += n
		}
		if count == 0 {
			continue
		}

		if err := writeFileAtomic(path, data); err != nil {
			log.Warn("failed to write patched file", "component", "patch", "file", file, "error", err)
			report.Failed++
			continue
		}
		log.Info("patched file", "component", "patch", "file", file, "replacements", count)
		report.Patched = append(report.Patched, file)
		report.Replacements += count
	}

	return report
}
