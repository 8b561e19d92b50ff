package update

import (
	"net/url"
	"strings"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/crx"
	"github.com/ZebulonRouseFrantzich/crxkeep/internal/platform"
)

// DefaultBaseURL is the public update endpoint.
const DefaultBaseURL = "https://clients2.google.com/service/update2/crx"

// BuildURL constructs the update-check and download URL.
//
// The id, install source and optional version are packed into the single
// percent-encoded x parameter:
//
//	x=id%3D{id}%26installsource%3Dondemand[%26v%3D{version}]%26uc
func BuildURL(base string, id crx.Identity, version string, p platform.Params) string {
	var x strings.Builder
	x.WriteString("id%3D")
	x.WriteString(url.QueryEscape(id.String()))
	x.WriteString("%26installsource%3Dondemand")
	if version != "" {
		x.WriteString("%26v%3D")
		// Escaped twice: once as a value inside x, once as part of x itself.
		x.WriteString(url.QueryEscape(url.QueryEscape(version)))
	}
	x.WriteString("%26uc")

	var b strings.Builder
	b.WriteString(base)
	b.WriteString("?response=redirect")
	b.WriteString("&os=" + url.QueryEscape(p.OS))
	b.WriteString("&arch=" + url.QueryEscape(p.Arch))
	b.WriteString("&os_arch=" + url.QueryEscape(p.OSArch))
	b.WriteString("&nacl_arch=" + url.QueryEscape(p.NaClArch))
	b.WriteString("&prod=" + url.QueryEscape(p.Product))
	b.WriteString("&prodchannel=unknown")
	b.WriteString("&prodversion=" + url.QueryEscape(p.ProdVersion))
	b.WriteString("&acceptformat=crx2%2Ccrx3")
	b.WriteString("&x=" + x.String())
	return b.String()
}
