package orchestrator

import (
	"context"
	"encoding/base64"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx/crxtest"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/retry"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/transaction"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/update"
)

// fakeUpdater scripts Check and Download answers and records every call.
type fakeUpdater struct {
	mu sync.Mutex

	checkResult update.CheckResult
	checkErr    error

	// downloads are answered in order; the last entry repeats.
	downloads []downloadAnswer
	// block, when set, is waited on before each download answers.
	block   chan struct{}
	entered chan struct{}

	checkURLs    []string
	downloadURLs []string
}

type downloadAnswer struct {
	data []byte
	err  error
}

func (f *fakeUpdater) Check(ctx context.Context, url string) (update.CheckResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checkURLs = append(f.checkURLs, url)
	return f.checkResult, f.checkErr
}

func (f *fakeUpdater) Download(ctx context.Context, url string) ([]byte, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.downloadURLs = append(f.downloadURLs, url)
	if len(f.downloads) == 0 {
		return nil, errors.New("no download scripted")
	}
	i := len(f.downloadURLs) - 1
	if i >= len(f.downloads) {
		i = len(f.downloads) - 1
	}
	return f.downloads[i].data, f.downloads[i].err
}

func (f *fakeUpdater) calls() (checks, downloads int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.checkURLs), len(f.downloadURLs)
}

type fixture struct {
	key     []byte
	id      crx.Identity
	dir     string
	state   string
	clock   *retry.FakeClock
	updater *fakeUpdater
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	key := crxtest.NewPublicKey(t)
	root := t.TempDir()
	return &fixture{
		key:     key,
		id:      crx.IdentityFromPublicKey(key),
		dir:     filepath.Join(root, "pkg"),
		state:   filepath.Join(root, "state"),
		clock:   retry.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)),
		updater: &fakeUpdater{},
	}
}

func (f *fixture) orchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	o, err := New(Config{
		Dir:      f.dir,
		Identity: f.id,
		BaseURL:  "https://update.test/crx",
		Updater:  f.updater,
		Retry:    retry.Policy{MaxAttempts: 5, Delay: 30 * time.Second, Clock: f.clock},
		StateDir: f.state,
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

// container builds a valid container for the fixture key.
func (f *fixture) container(t *testing.T, version string) []byte {
	t.Helper()
	payload := crxtest.Zip(t, map[string]string{
		"manifest.json":     `{"name":"App","version":"` + version + `"}`,
		"background.js":     "chrome.browsingData.removeCache({});",
		"static/js/main.js": "main();",
	})
	return crxtest.Signed(f.key, payload)
}

func (f *fixture) writeLocal(t *testing.T, version string) {
	t.Helper()
	if err := os.MkdirAll(f.dir, 0755); err != nil {
		t.Fatal(err)
	}
	manifest := `{"name":"App","version":"` + version + `"}`
	if err := os.WriteFile(filepath.Join(f.dir, install.ManifestFile), []byte(manifest), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(f.dir, "local.js"), []byte("local"), 0644); err != nil {
		t.Fatal(err)
	}
}

func (f *fixture) assertLocalUntouched(t *testing.T, version string) {
	t.Helper()
	got, _, err := install.ReadManifestVersion(f.dir)
	if err != nil || got != version {
		t.Errorf("local version = %q (%v), want %q", got, err, version)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "local.js")); err != nil {
		t.Error("local copy was modified")
	}
}

func TestScenarioFreshInstall(t *testing.T) {
	f := newFixture(t)
	f.updater.downloads = []downloadAnswer{{data: f.container(t, "1.0")}}

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != Installed {
		t.Fatalf("outcome = %v (%v), want installed", res.Outcome, res.Err)
	}
	checks, downloads := f.updater.calls()
	if checks != 0 {
		t.Errorf("check called %d times without a local copy", checks)
	}
	if downloads != 1 {
		t.Errorf("download called %d times, want 1", downloads)
	}
	if strings.Contains(f.updater.downloadURLs[0], "%26v%3D") {
		t.Errorf("download url carries a version: %s", f.updater.downloadURLs[0])
	}
	if res.Version != "1.0" || res.Identity != f.id {
		t.Errorf("unexpected result %+v", res)
	}

	key, err := install.ReadManifestKey(f.dir)
	if err != nil {
		t.Fatal(err)
	}
	if base64.StdEncoding.EncodeToString(key) != base64.StdEncoding.EncodeToString(f.key) {
		t.Error("manifest key is not the verified public key")
	}

	data, err := os.ReadFile(filepath.Join(f.dir, "background.js"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "removeCache") {
		t.Error("installed copy was not patched")
	}
	if res.Patch.Replacements != 1 {
		t.Errorf("patch report = %+v", res.Patch)
	}
}

func TestScenarioUsedLocal(t *testing.T) {
	f := newFixture(t)
	f.writeLocal(t, "1.0")
	f.updater.checkResult = update.CheckResult{Status: update.NoUpdate}

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != UsedLocal {
		t.Fatalf("outcome = %v (%v), want used-local", res.Outcome, res.Err)
	}
	checks, downloads := f.updater.calls()
	if checks != 1 || downloads != 0 {
		t.Errorf("calls: checks=%d downloads=%d", checks, downloads)
	}
	if !strings.Contains(f.updater.checkURLs[0], "%26v%3D1.0%26uc") {
		t.Errorf("check url lacks local version: %s", f.updater.checkURLs[0])
	}
	f.assertLocalUntouched(t, "1.0")
	if res.Version != "1.0" {
		t.Errorf("version = %q", res.Version)
	}
}

func TestScenarioBadPayloadKeepsLocal(t *testing.T) {
	f := newFixture(t)
	f.writeLocal(t, "1.0")
	f.updater.checkResult = update.CheckResult{Status: update.UpdateAvailable, Payload: []byte("garbage")}

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != FailedKeptLocal {
		t.Fatalf("outcome = %v, want failed-kept-local", res.Outcome)
	}
	if !errors.Is(res.Err, crx.ErrFormat) {
		t.Errorf("expected format error, got %v", res.Err)
	}
	if _, downloads := f.updater.calls(); downloads != 0 {
		t.Errorf("download called %d times", downloads)
	}
	f.assertLocalUntouched(t, "1.0")
	if res.Fatal() || !res.Usable() {
		t.Error("kept local copy must not be fatal")
	}
}

func TestScenarioDownloadExhausted(t *testing.T) {
	f := newFixture(t)
	f.updater.downloads = []downloadAnswer{{err: errors.New("connection refused")}}

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != FailedNoLocal {
		t.Fatalf("outcome = %v, want failed-no-local", res.Outcome)
	}
	if !res.Fatal() {
		t.Error("failed-no-local must be fatal")
	}
	var exhausted *retry.ExhaustedError
	if !errors.As(res.Err, &exhausted) || exhausted.Attempts != 5 {
		t.Errorf("expected exhausted after 5 attempts, got %v", res.Err)
	}
	if _, downloads := f.updater.calls(); downloads != 5 {
		t.Errorf("download called %d times, want 5", downloads)
	}
	sleeps := f.clock.Sleeps()
	if len(sleeps) != 4 {
		t.Fatalf("sleeps = %v, want 4", sleeps)
	}
	for _, d := range sleeps {
		if d != 30*time.Second {
			t.Errorf("sleep = %v, want 30s", d)
		}
	}
	if _, err := os.Stat(f.dir); !os.IsNotExist(err) {
		t.Error("failed install left a package directory")
	}
}

func TestCheckFailureFallsThroughToDownload(t *testing.T) {
	f := newFixture(t)
	f.writeLocal(t, "1.0")
	f.updater.checkErr = errors.New("timeout")
	f.updater.downloads = []downloadAnswer{{data: f.container(t, "2.0")}}

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != InstalledAfterUpdate {
		t.Fatalf("outcome = %v (%v), want installed-after-update", res.Outcome, res.Err)
	}
	if !res.NeedsRestartPrompt() {
		t.Error("update should prompt for restart")
	}
	if res.Version != "2.0" {
		t.Errorf("version = %q, want 2.0", res.Version)
	}
	if _, err := os.Stat(filepath.Join(f.dir, "local.js")); !os.IsNotExist(err) {
		t.Error("stale file from previous copy survived the update")
	}
}

func TestUpdateAvailableRedirectDownloads(t *testing.T) {
	f := newFixture(t)
	f.writeLocal(t, "1.0")
	f.updater.checkResult = update.CheckResult{Status: update.UpdateAvailable}
	f.updater.downloads = []downloadAnswer{{data: f.container(t, "1.1")}}

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != InstalledAfterUpdate {
		t.Fatalf("outcome = %v (%v)", res.Outcome, res.Err)
	}
	if _, downloads := f.updater.calls(); downloads != 1 {
		t.Errorf("download called %d times, want 1", downloads)
	}
}

func TestUpdateAvailableWithPayloadSkipsDownload(t *testing.T) {
	f := newFixture(t)
	f.writeLocal(t, "1.0")
	f.updater.checkResult = update.CheckResult{Status: update.UpdateAvailable, Payload: f.container(t, "1.1")}

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != InstalledAfterUpdate || res.Version != "1.1" {
		t.Fatalf("result = %+v", res)
	}
	if _, downloads := f.updater.calls(); downloads != 0 {
		t.Errorf("download called %d times, want 0", downloads)
	}
}

func TestDownloadRecoversAfterRetries(t *testing.T) {
	f := newFixture(t)
	f.updater.downloads = []downloadAnswer{
		{err: errors.New("reset")},
		{err: &update.ProtocolError{Op: "download", StatusCode: 503}},
		{data: f.container(t, "1.0")},
	}

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != Installed {
		t.Fatalf("outcome = %v (%v)", res.Outcome, res.Err)
	}
	if got := len(f.clock.Sleeps()); got != 2 {
		t.Errorf("sleeps = %d, want 2", got)
	}
}

func TestForeignPackageRejected(t *testing.T) {
	f := newFixture(t)
	other := crxtest.NewPublicKey(t)
	foreign := crxtest.Signed(other, crxtest.Zip(t, map[string]string{"manifest.json": `{}`}))
	f.updater.downloads = []downloadAnswer{{data: foreign}}

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != FailedNoLocal {
		t.Fatalf("outcome = %v", res.Outcome)
	}
	if !errors.Is(res.Err, crx.ErrTrust) {
		t.Errorf("expected trust error, got %v", res.Err)
	}
}

func TestLockHeldByAnotherProcess(t *testing.T) {
	f := newFixture(t)
	f.writeLocal(t, "1.0")

	lock, err := transaction.AcquireLock(context.Background(), f.state, f.id.String())
	if err != nil {
		t.Fatal(err)
	}
	defer lock.Release()

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != FailedKeptLocal {
		t.Fatalf("outcome = %v, want failed-kept-local", res.Outcome)
	}
	if !IsLockContention(res) {
		t.Errorf("expected lock contention, got %v", res.Err)
	}
	if checks, downloads := f.updater.calls(); checks+downloads != 0 {
		t.Error("updater called while lock was held")
	}
}

func TestJournalRecordsRun(t *testing.T) {
	f := newFixture(t)
	f.updater.downloads = []downloadAnswer{{data: f.container(t, "3.0")}}

	f.orchestrator(t).PrepareAndInstall(context.Background())

	rec, err := transaction.Load(f.state, f.id.String())
	if err != nil || rec == nil {
		t.Fatalf("Load() = (%v, %v)", rec, err)
	}
	if rec.State != transaction.StateCompleted || rec.Outcome != "installed" || rec.Installed != "3.0" {
		t.Errorf("journal = %+v", rec)
	}
	if _, err := os.Stat(transaction.LockPath(f.state, f.id.String())); !os.IsNotExist(err) {
		t.Error("install lock not released")
	}
}

func TestInterruptedSwapRecovered(t *testing.T) {
	f := newFixture(t)
	// A crash between moving the old copy aside and swapping in the new one.
	f.writeLocal(t, "1.0")
	if err := os.Rename(f.dir, f.dir+".previous"); err != nil {
		t.Fatal(err)
	}
	f.updater.checkResult = update.CheckResult{Status: update.NoUpdate}

	res := f.orchestrator(t).PrepareAndInstall(context.Background())

	if res.Outcome != UsedLocal {
		t.Fatalf("outcome = %v (%v), want used-local", res.Outcome, res.Err)
	}
	f.assertLocalUntouched(t, "1.0")
}

func TestConcurrentCallsShareOneRun(t *testing.T) {
	f := newFixture(t)
	f.updater.downloads = []downloadAnswer{{data: f.container(t, "1.0")}}
	f.updater.block = make(chan struct{})
	f.updater.entered = make(chan struct{}, 2)

	o := f.orchestrator(t)

	var wg sync.WaitGroup
	results := make([]Result, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0] = o.PrepareAndInstall(context.Background())
	}()
	<-f.updater.entered

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1] = o.PrepareAndInstall(context.Background())
	}()
	time.Sleep(100 * time.Millisecond)
	close(f.updater.block)
	wg.Wait()

	if _, downloads := f.updater.calls(); downloads != 1 {
		t.Errorf("download called %d times, want 1", downloads)
	}
	for i, r := range results {
		if r.Outcome != Installed {
			t.Errorf("result %d outcome = %v", i, r.Outcome)
		}
	}
}

func TestNewValidation(t *testing.T) {
	valid := crx.Identity("abcdefghijklmnopabcdefghijklmnop")
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "missing_dir", cfg: Config{Identity: valid, Updater: &fakeUpdater{}}},
		{name: "bad_identity", cfg: Config{Dir: "/x", Identity: "nope", Updater: &fakeUpdater{}}},
		{name: "missing_updater", cfg: Config{Dir: "/x", Identity: valid}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestOutcomeString(t *testing.T) {
	want := map[Outcome]string{
		UsedLocal:            "used-local",
		Installed:            "installed",
		InstalledAfterUpdate: "installed-after-update",
		FailedKeptLocal:      "failed-kept-local",
		FailedNoLocal:        "failed-no-local",
		Outcome(0):           "unknown",
	}
	for o, s := range want {
		if o.String() != s {
			t.Errorf("%d.String() = %q, want %q", int(o), o.String(), s)
		}
	}
}
