// Package config loads crxkeep's Lua configuration.
//
// The configuration file is plain Lua evaluated by gopher-lua in a
// sandboxed VM: os, io, module loading and debug facilities are removed, so
// a config can compute values but cannot touch the system. A read-only
// platform table is injected before evaluation, which allows conditionals
// such as:
//
//	crxkeep = {
//	  browser = {
//	    bin = platform.is_linux and "/usr/bin/chromium" or "",
//	  },
//	}
//
// The file must define a global crxkeep table:
//
//	crxkeep = {
//	  package = {
//	    id = "abcdefghijklmnopabcdefghijklmnop",
//	    base_url = "https://clients2.google.com/service/update2/crx",
//	    entry_path = "index.html",
//	    scheme = "chrome-extension",
//	  },
//	  paths   = { data_dir = "~/.local/share/crxkeep", user_packages = "" },
//	  update  = { attempts = 5, delay_seconds = 30, check_timeout_seconds = 10,
//	              download_timeout_seconds = 30, max_redirects = 5, platform = "fixed" },
//	  session = { origins = { "https://example.com" }, delays = { 10, 30 }, ttl_days = 365 },
//	  patches = { { file = "background.js", find = "...", replace = "..." } },
//	  browser = { headless = false, bin = "", remote_url = "" },
//	  log     = { level = "info", file = true },
//	}
//
// Every field except package.id is optional; Defaults supplies the rest.
// An explicit empty patches table disables patching.
//
// Environment variables override the file: CRXKEEP_DATA_DIR replaces
// paths.data_dir and CRXKEEP_LOG replaces log.level. CRXKEEP_CONFIG names
// the file to load.
package config
