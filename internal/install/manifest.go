package install

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ManifestFile is the name of the manifest inside a package directory.
const ManifestFile = "manifest.json"

// IsPackageDir reports whether dir holds a manifest file.
func IsPackageDir(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, ManifestFile))
	return err == nil && info.Mode().IsRegular()
}

// ReadManifestVersion returns the manifest's "version" field. The boolean is
// false when the field is missing or not a string.
func ReadManifestVersion(dir string) (string, bool, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false, wrap("read manifest", path, err)
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return "", false, wrap("parse manifest", path, err)
	}
	raw, ok := fields["version"]
	if !ok {
		return "", false, nil
	}
	var version string
	if err := json.Unmarshal(raw, &version); err != nil {
		return "", false, nil
	}
	return version, true, nil
}

// ReadManifestKey returns the base64-decoded "key" field, or nil when the
// manifest has none.
func ReadManifestKey(dir string) ([]byte, error) {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wrap("read manifest", path, err)
	}

	var m struct {
		Key string `json:"key"`
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, wrap("parse manifest", path, err)
	}
	if m.Key == "" {
		return nil, nil
	}
	key, err := base64.StdEncoding.DecodeString(m.Key)
	if err != nil {
		return nil, wrap("decode manifest key", path, err)
	}
	return key, nil
}

// InjectIdentityKey sets the manifest's "key" field to the base64 encoding of
// publicKey. The order of existing fields is kept and the file is rewritten
// atomically with two-space indentation.
func InjectIdentityKey(dir string, publicKey []byte) error {
	path := filepath.Join(dir, ManifestFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return wrap("read manifest", path, err)
	}

	obj, err := decodeObject(data)
	if err != nil {
		return wrap("parse manifest", path, err)
	}

	key, err := marshalString(base64.StdEncoding.EncodeToString(publicKey))
	if err != nil {
		return wrap("encode key", path, err)
	}
	obj = obj.set("key", key)

	out, err := obj.marshalIndent()
	if err != nil {
		return wrap("encode manifest", path, err)
	}
	return writeFileAtomic(path, out)
}

type member struct {
	Key   string
	Value json.RawMessage
}

// orderedObject is a JSON object that remembers the order of its members.
type orderedObject []member

func decodeObject(data []byte) (orderedObject, error) {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("manifest is not a JSON object")
	}

	var obj orderedObject
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("decode %q: %w", key, err)
		}
		obj = append(obj, member{Key: key, Value: value})
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after manifest object")
	}
	return obj, nil
}

// set replaces the value of key, or appends it when absent.
func (o orderedObject) set(key string, value json.RawMessage) orderedObject {
	for i := range o {
		if o[i].Key == key {
			o[i].Value = value
			return o
		}
	}
	return append(o, member{Key: key, Value: value})
}

func (o orderedObject) marshalIndent() ([]byte, error) {
	var compact bytes.Buffer
	compact.WriteByte('{')
	for i, m := range o {
		if i > 0 {
			compact.WriteByte(',')
		}
		k, err := marshalString(m.Key)
		if err != nil {
			return nil, err
		}
		compact.Write(k)
		compact.WriteByte(':')
		compact.Write(m.Value)
	}
	compact.WriteByte('}')

	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

func marshalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// writeFileAtomic writes data to a temp file next to path and renames it
// over path.
func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*.tmp")
	if err != nil {
		return wrap("create temp", path, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return wrap("write", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return wrap("close", tmpPath, err)
	}
	if err := os.Chmod(tmpPath, 0644); err != nil {
		os.Remove(tmpPath)
		return wrap("chmod", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return wrap("rename", path, err)
	}
	return nil
}
