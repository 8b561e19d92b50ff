// Package install turns a verified package into an installed package
// directory.
//
// Installation replaces the target directory wholesale: a sibling staging
// directory is cleaned, the zip payload is extracted into it, the manifest is
// pinned to the verified public key, and the result is swapped into place.
// Archive entries that would resolve outside the target directory are
// dropped.
//
// After installation a Patcher may rewrite well-known script fragments in
// the installed copy. Patching is best-effort and never fails an install.
package install
