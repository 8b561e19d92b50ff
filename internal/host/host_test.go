package host

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/session"
)

func TestPackageURL(t *testing.T) {
	tests := []struct {
		scheme, id, entry string
		want              string
	}{
		{"chrome-extension", "abc", "index.html", "chrome-extension://abc/index.html"},
		{"chrome-extension", "abc", "/index.html", "chrome-extension://abc/index.html"},
		{"", "abc", "static/app.html", "chrome-extension://abc/static/app.html"},
	}
	for _, tt := range tests {
		if got := PackageURL(tt.scheme, tt.id, tt.entry); got != tt.want {
			t.Errorf("PackageURL(%q, %q, %q) = %q, want %q", tt.scheme, tt.id, tt.entry, got, tt.want)
		}
	}
}

func TestRuntimeID(t *testing.T) {
	t.Run("from_manifest_key", func(t *testing.T) {
		dir := t.TempDir()
		key := []byte("public key bytes")
		manifest := `{"key":"` + base64.StdEncoding.EncodeToString(key) + `"}`
		if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(manifest), 0644); err != nil {
			t.Fatal(err)
		}

		got, err := RuntimeID(dir)
		if err != nil {
			t.Fatal(err)
		}
		if got != crx.IdentityFromPublicKey(key) {
			t.Errorf("RuntimeID() = %s", got)
		}
	})

	t.Run("from_path", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "manifest.json"), []byte(`{"name":"x"}`), 0644); err != nil {
			t.Fatal(err)
		}
		abs, _ := filepath.Abs(dir)

		got, err := RuntimeID(dir)
		if err != nil {
			t.Fatal(err)
		}
		if got != crx.IdentityFromPath(abs) || !got.Valid() {
			t.Errorf("RuntimeID() = %s", got)
		}
	})

	t.Run("missing_manifest", func(t *testing.T) {
		if _, err := RuntimeID(t.TempDir()); err == nil {
			t.Error("expected error without manifest")
		}
	})
}

func TestCookieConversion(t *testing.T) {
	expires := time.Date(2027, 5, 1, 8, 0, 0, 0, time.UTC)

	persistent := fromProto(&proto.NetworkCookie{
		Name:     "sid",
		Value:    "v",
		Domain:   ".line.me",
		Path:     "/",
		Expires:  proto.TimeSinceEpoch(expires.Unix()),
		HTTPOnly: true,
		Secure:   true,
		SameSite: proto.NetworkCookieSameSiteLax,
	})
	if !persistent.Expires.Equal(expires) || persistent.SessionOnly || persistent.SameSite != "Lax" {
		t.Errorf("fromProto() = %+v", persistent)
	}

	sess := fromProto(&proto.NetworkCookie{Name: "s", Expires: -1, Session: true})
	if !sess.SessionOnly || !sess.Expires.IsZero() {
		t.Errorf("session cookie = %+v", sess)
	}

	param := toProto(session.CookieRecord{
		Name: "sid", Value: "v", Domain: ".line.me", Path: "/",
		Expires: expires, HTTPOnly: true, Secure: true, SameSite: "Lax",
	})
	if param.Expires != proto.TimeSinceEpoch(expires.Unix()) {
		t.Errorf("expires = %v", param.Expires)
	}
	if param.SameSite != proto.NetworkCookieSameSiteLax || !param.HTTPOnly || !param.Secure || param.Domain != ".line.me" {
		t.Errorf("toProto() = %+v", param)
	}

	if p := toProto(session.CookieRecord{Name: "s", SessionOnly: true}); p.Expires != 0 {
		t.Errorf("session cookie expires = %v, want unset", p.Expires)
	}
}
