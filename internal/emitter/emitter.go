// Package emitter holds the file planning and writing shared by the artifact
// emitters.
package emitter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Options controls where and how an emitter writes.
type Options struct {
	OutDir  string // required; root of every generated artifact
	Force   bool   // overwrite existing files
	DryRun  bool   // don't write, only plan
	Verbose bool
}

// PlannedFile describes a file an emitter intends to write.
type PlannedFile struct {
	RelPath string
	Size    int
	Mode    os.FileMode
}

// Result returns the planned files in path order.
type Result struct {
	Planned []PlannedFile
}

// Paths returns the planned relative paths.
func (r *Result) Paths() []string {
	out := make([]string, 0, len(r.Planned))
	for _, p := range r.Planned {
		out = append(out, p.RelPath)
	}
	return out
}

// ErrExists is wrapped by Write when a target file exists and Force is off.
var ErrExists = errors.New("output file exists")

// Files maps slash-separated relative paths to contents.
type Files map[string][]byte

// Emit plans files and, unless opts.DryRun, writes them under opts.OutDir.
// name prefixes error messages.
func Emit(name string, files Files, opts Options) (*Result, error) {
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("%s: OutDir is required", name)
	}
	res := &Result{Planned: Plan(files)}
	if opts.DryRun {
		return res, nil
	}
	if err := Write(opts.OutDir, files, opts.Force); err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return res, nil
}

// Plan lists files in deterministic order.
func Plan(files Files) []PlannedFile {
	rels := make([]string, 0, len(files))
	for p := range files {
		rels = append(rels, p)
	}
	sort.Strings(rels)
	planned := make([]PlannedFile, 0, len(rels))
	for _, rel := range rels {
		planned = append(planned, PlannedFile{RelPath: filepath.ToSlash(rel), Size: len(files[rel]), Mode: 0o644})
	}
	return planned
}

// Write stores every file under outDir via temp file and rename. Without
// force, nothing is written if any target already exists.
func Write(outDir string, files Files, force bool) error {
	abs, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolve out dir: %w", err)
	}
	rels := make([]string, 0, len(files))
	for rel := range files {
		if err := checkRel(rel); err != nil {
			return err
		}
		rels = append(rels, rel)
	}
	sort.Strings(rels)

	if !force {
		for _, rel := range rels {
			p := filepath.Join(abs, filepath.FromSlash(rel))
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%w: %s (use --force to overwrite)", ErrExists, p)
			}
		}
	}

	for _, rel := range rels {
		p := filepath.Join(abs, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return fmt.Errorf("mkdir: %w", err)
		}
		tmp, err := os.CreateTemp(filepath.Dir(p), "."+filepath.Base(p)+".tmp-*")
		if err != nil {
			return fmt.Errorf("write temp %s: %w", rel, err)
		}
		_, werr := tmp.Write(files[rel])
		cerr := tmp.Close()
		if werr == nil {
			werr = cerr
		}
		if werr == nil {
			werr = os.Chmod(tmp.Name(), 0o644)
		}
		if werr != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("write temp %s: %w", rel, werr)
		}
		if err := os.Rename(tmp.Name(), p); err != nil {
			_ = os.Remove(tmp.Name())
			return fmt.Errorf("rename %s: %w", rel, err)
		}
	}
	return nil
}

func checkRel(rel string) error {
	clean := filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	if rel == "" || filepath.IsAbs(rel) || clean == ".." || strings.HasPrefix(clean, "../") {
		return fmt.Errorf("invalid output path %q", rel)
	}
	return nil
}
