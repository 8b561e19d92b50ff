package config

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/crxkeep/internal/install"
)

// Generator generates Lua configuration code from Go structs.
type Generator struct {
	indent string // Indentation string (default: two spaces)
	now    func() time.Time
}

// NewGenerator creates a new Lua config generator.
func NewGenerator() *Generator {
	return &Generator{
		indent: "  ",
		now:    time.Now,
	}
}

// Generate generates Lua code from a Config struct. Every section is
// written out so the result documents the effective values.
func (g *Generator) Generate(config *Config) (string, error) {
	if config == nil {
		return "", fmt.Errorf("nil config")
	}

	var buf bytes.Buffer

	buf.WriteString("-- crxkeep configuration\n")
	buf.WriteString("-- Generated: ")
	buf.WriteString(g.now().Format(time.RFC3339))
	buf.WriteString("\n\n")

	buf.WriteString("crxkeep = {\n")

	g.open(&buf, 1, luaFieldPackage)
	g.str(&buf, 2, luaFieldID, config.Package.ID)
	g.str(&buf, 2, luaFieldBaseURL, config.Package.BaseURL)
	g.str(&buf, 2, luaFieldEntryPath, config.Package.EntryPath)
	g.str(&buf, 2, luaFieldScheme, config.Package.Scheme)
	g.close(&buf, 1, true)

	g.open(&buf, 1, luaFieldPaths)
	g.str(&buf, 2, luaFieldDataDir, config.Paths.DataDir)
	if config.Paths.UserPackages != "" {
		g.str(&buf, 2, luaFieldUserPackages, config.Paths.UserPackages)
	}
	g.close(&buf, 1, true)

	g.open(&buf, 1, luaFieldUpdate)
	g.raw(&buf, 2, luaFieldAttempts, strconv.Itoa(config.Update.Attempts))
	g.raw(&buf, 2, luaFieldDelay, formatSeconds(config.Update.Delay))
	g.raw(&buf, 2, luaFieldCheckTimeout, formatSeconds(config.Update.CheckTimeout))
	g.raw(&buf, 2, luaFieldDownloadTimeout, formatSeconds(config.Update.DownloadTimeout))
	g.raw(&buf, 2, luaFieldMaxRedirects, strconv.Itoa(config.Update.MaxRedirects))
	g.str(&buf, 2, luaFieldPlatform, config.Update.Platform)
	g.close(&buf, 1, true)

	g.open(&buf, 1, luaFieldSession)
	origins := make([]string, 0, len(config.Session.Origins))
	for _, o := range config.Session.Origins {
		origins = append(origins, g.quoteLuaString(o))
	}
	g.raw(&buf, 2, luaFieldOrigins, "{ "+strings.Join(origins, ", ")+" }")
	delays := make([]string, 0, len(config.Session.Delays))
	for _, d := range config.Session.Delays {
		delays = append(delays, formatSeconds(d))
	}
	g.raw(&buf, 2, luaFieldDelays, "{ "+strings.Join(delays, ", ")+" }")
	g.raw(&buf, 2, luaFieldTTLDays, strconv.FormatFloat(config.Session.TTL.Hours()/24, 'f', -1, 64))
	g.close(&buf, 1, true)

	if config.Patches != nil {
		g.writePatches(&buf, config.Patches)
	}

	g.open(&buf, 1, luaFieldBrowser)
	g.raw(&buf, 2, luaFieldHeadless, strconv.FormatBool(config.Browser.Headless))
	g.str(&buf, 2, luaFieldBin, config.Browser.Bin)
	g.str(&buf, 2, luaFieldRemoteURL, config.Browser.RemoteURL)
	g.close(&buf, 1, true)

	g.open(&buf, 1, luaFieldLog)
	g.str(&buf, 2, luaFieldLevel, config.Log.Level)
	g.raw(&buf, 2, luaFieldFile, strconv.FormatBool(config.Log.File))
	g.close(&buf, 1, false)

	buf.WriteString("}\n")

	return buf.String(), nil
}

func (g *Generator) writePatches(buf *bytes.Buffer, rules []install.PatchRule) {
	g.open(buf, 1, luaFieldPatches)
	for _, r := range rules {
		buf.WriteString(strings.Repeat(g.indent, 2))
		buf.WriteString("{\n")
		g.str(buf, 3, luaFieldFile, r.File)
		g.str(buf, 3, luaFieldFind, r.Find)
		g.str(buf, 3, luaFieldReplace, r.Replace)
		buf.WriteString(strings.Repeat(g.indent, 2))
		buf.WriteString("},\n")
	}
	g.close(buf, 1, true)
}

func (g *Generator) open(buf *bytes.Buffer, depth int, name string) {
	buf.WriteString(strings.Repeat(g.indent, depth))
	buf.WriteString(name)
	buf.WriteString(" = {\n")
}

func (g *Generator) close(buf *bytes.Buffer, depth int, blank bool) {
	buf.WriteString(strings.Repeat(g.indent, depth))
	buf.WriteString("},\n")
	if blank {
		buf.WriteString("\n")
	}
}

func (g *Generator) str(buf *bytes.Buffer, depth int, key, value string) {
	g.raw(buf, depth, key, g.quoteLuaString(value))
}

func (g *Generator) raw(buf *bytes.Buffer, depth int, key, value string) {
	buf.WriteString(strings.Repeat(g.indent, depth))
	buf.WriteString(key)
	buf.WriteString(" = ")
	buf.WriteString(value)
	buf.WriteString(",\n")
}

func formatSeconds(d time.Duration) string {
	return strconv.FormatFloat(d.Seconds(), 'f', -1, 64)
}

// quoteLuaString quotes a string for Lua, handling special characters.
func (g *Generator) quoteLuaString(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\") // Escape backslashes first
	s = strings.ReplaceAll(s, "\"", "\\\"")
	s = strings.ReplaceAll(s, "\n", "\\n")
	s = strings.ReplaceAll(s, "\r", "\\r")
	s = strings.ReplaceAll(s, "\t", "\\t")
	return "\"" + s + "\""
}
