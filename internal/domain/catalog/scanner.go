// Package catalog enumerates imaging cases, phases and slices from a
// data/<case>/<phase>/<NNN>.<ext> directory hierarchy.
package catalog

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Scanner reads the catalog from disk on every call.
type Scanner struct {
	root   string
	logger *slog.Logger
}

// NewScanner creates a scanner rooted at dir.
func NewScanner(root string, logger *slog.Logger) *Scanner {
	return &Scanner{root: root, logger: logger}
}

// Root returns the catalog root directory.
func (s *Scanner) Root() string {
	return s.root
}

// ListCases returns case directory names in alphabetical order.
func (s *Scanner) ListCases(ctx context.Context) []string {
	return s.listDirs(ctx, s.root)
}

// ListPhases returns the phase directory names of a case in alphabetical
// order. A missing case yields an empty list.
func (s *Scanner) ListPhases(ctx context.Context, caseID string) []string {
	if !validComponent(caseID) {
		return nil
	}
	return s.listDirs(ctx, filepath.Join(s.root, caseID))
}

// ListSlices returns the image files of a phase ordered by numeric filename
// stem, falling back to name order for non-numeric stems.
func (s *Scanner) ListSlices(ctx context.Context, caseID, phaseID string) []SliceRef {
	if !validComponent(caseID) || !validComponent(phaseID) {
		return nil
	}
	dir := filepath.Join(s.root, caseID, phaseID)
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.debug(ctx, "phase directory unreadable", dir, err)
		return nil
	}

	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			names = append(names, entry.Name())
		}
	}
	sort.SliceStable(names, func(i, j int) bool {
		return sliceLess(names[i], names[j])
	})

	refs := make([]SliceRef, 0, len(names))
	for i, name := range names {
		refs = append(refs, SliceRef{
			Index: i + 1,
			Name:  name,
			Path:  filepath.Join(dir, name),
		})
	}
	return refs
}

// Slice resolves a 1-based slice index within a phase.
func (s *Scanner) Slice(ctx context.Context, caseID, phaseID string, index int) (SliceRef, bool) {
	slices := s.ListSlices(ctx, caseID, phaseID)
	if index < 1 || index > len(slices) {
		return SliceRef{}, false
	}
	return slices[index-1], true
}

// HasCase reports whether caseID is a case directory.
func (s *Scanner) HasCase(ctx context.Context, caseID string) bool {
	return contains(s.ListCases(ctx), caseID)
}

// HasPhase reports whether phaseID is a phase of caseID.
func (s *Scanner) HasPhase(ctx context.Context, caseID, phaseID string) bool {
	return contains(s.ListPhases(ctx, caseID), phaseID)
}

func (s *Scanner) listDirs(ctx context.Context, dir string) []string {
	entries, err := os.ReadDir(dir)
	if err != nil {
		s.debug(ctx, "catalog directory unreadable", dir, err)
		return nil
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() && !strings.HasPrefix(entry.Name(), ".") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names
}

func (s *Scanner) debug(ctx context.Context, msg, dir string, err error) {
	if s.logger == nil {
		return
	}
	s.logger.DebugContext(ctx, msg, "dir", dir, "error", err)
}

// sliceLess orders numeric stems numerically and before non-numeric stems,
// which are ordered by name.
func sliceLess(a, b string) bool {
	na, aNumeric := numericStem(a)
	nb, bNumeric := numericStem(b)
	switch {
	case aNumeric && bNumeric:
		if na != nb {
			return na < nb
		}
		return a < b
	case aNumeric:
		return true
	case bNumeric:
		return false
	default:
		return a < b
	}
}

func numericStem(name string) (int64, bool) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	n, err := strconv.ParseInt(stem, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

func validComponent(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\`)
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}
