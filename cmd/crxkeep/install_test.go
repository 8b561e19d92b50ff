package main

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx/crxtest"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/testutil"
)

// updateService serves pkg for requests without a version and answers
// 204 for requests that carry one.
type updateService struct {
	pkg   []byte
	hits  atomic.Int32
	fails bool
}

func (s *updateService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.hits.Add(1)
	if s.fails {
		http.Error(w, "down", http.StatusServiceUnavailable)
		return
	}
	inner, _ := url.ParseQuery(r.URL.Query().Get("x"))
	if inner.Has("v") {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.Write(s.pkg)
}

func writeConfig(t *testing.T, env testutil.Env, id crx.Identity, baseURL string) {
	t.Helper()
	code := fmt.Sprintf(`
crxkeep = {
  package = { id = %q, base_url = %q },
  update = { attempts = 1, delay_seconds = 0 },
  log = { level = "error", file = false },
}
`, id, baseURL)
	if err := os.WriteFile(env.ConfigFile, []byte(code), 0o644); err != nil {
		t.Fatal(err)
	}
}

func newService(t *testing.T) (*updateService, crx.Identity) {
	t.Helper()
	key := crxtest.NewPublicKey(t)
	payload := crxtest.Zip(t, map[string]string{
		"manifest.json": `{"name":"demo","version":"2.4.0"}`,
		"index.html":    "<html></html>",
	})
	return &updateService{pkg: crxtest.Signed(key, payload)}, crx.IdentityFromPublicKey(key)
}

func TestRunInstallThenCheck(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	svc, id := newService(t)
	srv := httptest.NewServer(svc)
	defer srv.Close()
	writeConfig(t, env, id, srv.URL+"/crx")

	var out bytes.Buffer
	if err := runInstall(nil, &out); err != nil {
		t.Fatalf("runInstall() error = %v\n%s", err, out.String())
	}
	if !strings.Contains(out.String(), "Installed "+id.String()+" version 2.4.0") {
		t.Errorf("unexpected install output:\n%s", out.String())
	}

	mainDir := filepath.Join(env.DataDir, "packages", "main")
	if !install.IsPackageDir(mainDir) {
		t.Fatalf("no package installed in %s", mainDir)
	}
	if _, err := os.Stat(filepath.Join(mainDir, "index.html")); err != nil {
		t.Errorf("payload not extracted: %v", err)
	}

	out.Reset()
	if err := runCheck(nil, &out); err != nil {
		t.Fatalf("runCheck() error = %v", err)
	}
	if got := out.String(); got != "no-update (installed version 2.4.0)\n" {
		t.Errorf("runCheck() output = %q", got)
	}

	out.Reset()
	if err := runInstall(nil, &out); err != nil {
		t.Fatalf("second runInstall() error = %v", err)
	}
	if !strings.Contains(out.String(), "is up to date (version 2.4.0)") {
		t.Errorf("unexpected second install output:\n%s", out.String())
	}
}

func TestRunInstall_ServiceDown(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	svc, id := newService(t)
	svc.fails = true
	srv := httptest.NewServer(svc)
	defer srv.Close()
	writeConfig(t, env, id, srv.URL+"/crx")

	var out bytes.Buffer
	err := runInstall(nil, &out)
	if err == nil {
		t.Fatal("expected error when nothing could be installed")
	}
	if !strings.Contains(out.String(), "Install failed") {
		t.Errorf("unexpected output:\n%s", out.String())
	}
	if svc.hits.Load() != 1 {
		t.Errorf("hits = %d, want 1 (attempts = 1)", svc.hits.Load())
	}
}

func TestRunCheck_NoLocalCopy(t *testing.T) {
	env := testutil.SetupTestEnv(t)
	_, id := newService(t)
	writeConfig(t, env, id, "https://updates.invalid/crx")

	err := runCheck(nil, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "no installed package") {
		t.Errorf("runCheck() error = %v", err)
	}
}

func TestLoadApp_MissingConfig(t *testing.T) {
	testutil.SetupTestEnv(t)

	err := runInstall(nil, &bytes.Buffer{})
	if err == nil || !strings.Contains(err.Error(), "crxkeep init") {
		t.Errorf("runInstall() error = %v, want init hint", err)
	}
}
