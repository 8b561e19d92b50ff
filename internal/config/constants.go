package config

import "time"

// Environment variables
const (
	EnvConfig  = "CRXKEEP_CONFIG"
	EnvDataDir = "CRXKEEP_DATA_DIR"
)

// DefaultConfigFile is looked up in the data directory when no path is given.
const DefaultConfigFile = "crxkeep.lua"

// Resource limits
const (
	// MaxConfigSize bounds the size of a config file.
	MaxConfigSize = 10 << 20
	// ParseTimeout bounds evaluation of a config file.
	ParseTimeout = 5 * time.Second
	// MaxOrigins bounds session.origins.
	MaxOrigins = 100
	// MaxPatches bounds the patches list.
	MaxPatches = 100
)

// Lua schema field names and globals
const (
	luaGlobalCrxkeep = "crxkeep"

	luaFieldPackage = "package"
	luaFieldPaths   = "paths"
	luaFieldUpdate  = "update"
	luaFieldSession = "session"
	luaFieldPatches = "patches"
	luaFieldBrowser = "browser"
	luaFieldLog     = "log"

	luaFieldID        = "id"
	luaFieldBaseURL   = "base_url"
	luaFieldEntryPath = "entry_path"
	luaFieldScheme    = "scheme"

	luaFieldDataDir      = "data_dir"
	luaFieldUserPackages = "user_packages"

	luaFieldAttempts        = "attempts"
	luaFieldDelay           = "delay_seconds"
	luaFieldCheckTimeout    = "check_timeout_seconds"
	luaFieldDownloadTimeout = "download_timeout_seconds"
	luaFieldMaxRedirects    = "max_redirects"
	luaFieldPlatform        = "platform"

	luaFieldOrigins = "origins"
	luaFieldDelays  = "delays"
	luaFieldTTLDays = "ttl_days"

	luaFieldFile    = "file"
	luaFieldFind    = "find"
	luaFieldReplace = "replace"

	luaFieldHeadless  = "headless"
	luaFieldBin       = "bin"
	luaFieldRemoteURL = "remote_url"

	luaFieldLevel = "level"
)
