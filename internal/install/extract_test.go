package install

import (
	"archive/zip"
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx/crxtest"
)

// listTree returns every path below root, relative and slash-separated.
// Directories carry a trailing slash.
func listTree(t *testing.T, root string) []string {
	t.Helper()

	var out []string
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if info.IsDir() {
			rel += "/"
		}
		out = append(out, rel)
		return nil
	})
	if err != nil {
		t.Fatalf("walk %s: %v", root, err)
	}
	sort.Strings(out)
	return out
}

func TestExtract(t *testing.T) {
	tests := []struct {
		name  string
		files map[string]string
		want  []string
	}{
		{
			name: "simple_extraction",
			files: map[string]string{
				"manifest.json": `{"name":"x"}`,
				"index.html":    "<html></html>",
			},
			want: []string{"index.html", "manifest.json"},
		},
		{
			name: "nested_directories",
			files: map[string]string{
				"static/":           "",
				"static/js/main.js": "main()",
				"a/b/c.txt":         "c",
			},
			want: []string{"a/", "a/b/", "a/b/c.txt", "static/", "static/js/", "static/js/main.js"},
		},
		{
			name: "traversal_entries_dropped",
			files: map[string]string{
				"../evil.txt":       "evil",
				"a/../../evil2.txt": "evil",
				"/abs.txt":          "evil",
				"C:/win.txt":        "evil",
				`dir\..\..\bs.txt`:  "evil",
				"ok.txt":            "ok",
			},
			want: []string{"ok.txt"},
		},
		{
			name: "inner_dotdot_that_stays_inside",
			files: map[string]string{
				"a/../b.txt": "b",
			},
			want: []string{"b.txt"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parent := t.TempDir()
			dest := filepath.Join(parent, "pkg")

			if err := New(nil).Extract(crxtest.Zip(t, tt.files), dest); err != nil {
				t.Fatalf("Extract() error = %v", err)
			}

			got := listTree(t, dest)
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("tree = %v, want %v", got, tt.want)
			}

			// Nothing may land next to the target directory.
			siblings, err := os.ReadDir(parent)
			if err != nil {
				t.Fatal(err)
			}
			if len(siblings) != 1 {
				t.Errorf("unexpected files beside target: %v", siblings)
			}
		})
	}
}

func TestExtractContents(t *testing.T) {
	dest := t.TempDir()
	payload := crxtest.Zip(t, map[string]string{"static/js/main.js": "localStorage.clear();"})

	if err := New(nil).Extract(payload, dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dest, "static", "js", "main.js"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "localStorage.clear();" {
		t.Errorf("content = %q", data)
	}
}

func TestExtractSkipsSymlinks(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	hdr := &zip.FileHeader{Name: "link"}
	hdr.SetMode(os.ModeSymlink | 0777)
	w, err := zw.CreateHeader(hdr)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("/etc/passwd"))
	w, err = zw.Create("real.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = w.Write([]byte("real"))
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}

	dest := t.TempDir()
	if err := New(nil).Extract(buf.Bytes(), dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	got := listTree(t, dest)
	if len(got) != 1 || got[0] != "real.txt" {
		t.Errorf("tree = %v, want [real.txt]", got)
	}
}

func TestExtractInvalidArchive(t *testing.T) {
	err := New(nil).Extract([]byte("definitely not a zip"), t.TempDir())
	if err == nil {
		t.Fatal("expected error for invalid archive")
	}
	var installErr *InstallError
	if !errors.As(err, &installErr) {
		t.Errorf("expected *InstallError, got %T", err)
	}
}

func TestEnsureCleanThenExtract(t *testing.T) {
	dest := t.TempDir()
	if err := os.WriteFile(filepath.Join(dest, "stale.js"), []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dest, "old", "dir"), 0755); err != nil {
		t.Fatal(err)
	}

	if err := EnsureClean(dest); err != nil {
		t.Fatalf("EnsureClean() error = %v", err)
	}
	if err := New(nil).Extract(crxtest.Zip(t, map[string]string{"fresh.js": "new"}), dest); err != nil {
		t.Fatalf("Extract() error = %v", err)
	}

	got := listTree(t, dest)
	if len(got) != 1 || got[0] != "fresh.js" {
		t.Errorf("tree = %v, want [fresh.js]", got)
	}
}

func TestEnclosedPath(t *testing.T) {
	tests := []struct {
		name string
		want string
		ok   bool
	}{
		{"a.txt", "a.txt", true},
		{"dir/a.txt", filepath.Join("dir", "a.txt"), true},
		{"./a.txt", "a.txt", true},
		{"dir/", "dir", true},
		{"", "", false},
		{".", "", false},
		{"..", "", false},
		{"../a", "", false},
		{"/etc/passwd", "", false},
		{"c:/windows", "", false},
		{`a\b`, "", false},
		{"a\x00b", "", false},
	}

	for _, tt := range tests {
		got, ok := enclosedPath(tt.name)
		if ok != tt.ok || got != tt.want {
			t.Errorf("enclosedPath(%q) = (%q, %v), want (%q, %v)", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}
