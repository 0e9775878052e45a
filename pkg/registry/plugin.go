package registry

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"plugin"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/ProtonMail/go-crypto/openpgp/clearsign"

	"github.com/deai-sub000/deai/pkg/deaierr"
	"github.com/deai-sub000/deai/pkg/object"
)

// pluginEntrySymbol is the single well-known init symbol every plugin
// exports: signature func(root *object.Object) int.
const pluginEntrySymbol = "DeaiPluginInit"

// sharedLibSuffix is this platform's shared-library filename suffix, used
// by LoadPluginFromDir to pick out plugin candidates.
const sharedLibSuffix = ".so"

type pluginHandle struct {
	path string
	p    *plugin.Plugin
}

// TrustedKeyring holds the OpenPGP keyring LoadPlugin/LoadPluginFromDir
// check clearsigned manifests against when VerifyPlugins is enabled. It is
// exported so cmd/deai can populate it from a configured keyring file.
var TrustedKeyring openpgp.EntityList

// LoadPlugin opens the shared library at path, resolves the entry symbol,
// and invokes it with the (borrowed) root object. The plugin is expected to
// Ref() the root itself if it wants to retain it past the call.
func (r *Registry) LoadPlugin(path string) error {
	if r.VerifyPlugins {
		if err := verifyPluginSignature(path); err != nil {
			return err
		}
	}
	p, err := plugin.Open(path)
	if err != nil {
		return deaierr.Wrap(deaierr.Other, err, "load_plugin: opening %q", path)
	}
	sym, err := p.Lookup(pluginEntrySymbol)
	if err != nil {
		return deaierr.Wrap(deaierr.NotFound, err, "load_plugin: %q missing %s", path, pluginEntrySymbol)
	}
	init, ok := sym.(func(*object.Object) int)
	if !ok {
		return deaierr.New(deaierr.InvalidType, "load_plugin: %s in %q has the wrong signature", pluginEntrySymbol, path)
	}
	if status := init(r.Root); status != 0 {
		return deaierr.New(deaierr.Other, "load_plugin: %q entry point returned status %d", path, status)
	}
	r.pluginStore[path] = &pluginHandle{path: path, p: p}
	return nil
}

// LoadPluginFromDir calls LoadPlugin on every regular file in dir ending in
// the platform's shared-library suffix. A plugin that fails to load or
// fails signature verification is logged and skipped; one bad plugin does
// not abort the others.
func (r *Registry) LoadPluginFromDir(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return deaierr.Wrap(deaierr.NotFound, err, "load_plugin_from_dir: reading %q", dir)
	}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), sharedLibSuffix) {
			continue
		}
		full := filepath.Join(dir, e.Name())
		if err := r.LoadPlugin(full); err != nil {
			logPluginFailure(full, err)
		}
	}
	return nil
}

// logPluginFailure is overridden by internal/builtin/log's wiring so plugin
// load failures go through the same glog sink as everything else; it
// defaults to silent so pkg/registry has no hard logging dependency.
var logPluginFailure = func(path string, err error) {}

// SetPluginFailureLogger installs the collaborator that reports skipped
// plugins.
func SetPluginFailureLogger(fn func(path string, err error)) {
	logPluginFailure = fn
}

// verifyPluginSignature requires a sibling "<plugin>.so.asc" clearsigned
// manifest containing the plugin file's lowercase hex SHA-256 digest,
// signed by a key in TrustedKeyring.
func verifyPluginSignature(path string) error {
	manifestPath := path + ".asc"
	manifest, err := os.ReadFile(manifestPath)
	if err != nil {
		return deaierr.Wrap(deaierr.NotFound, err, "verify_plugins: missing manifest %q", manifestPath)
	}
	block, _ := clearsign.Decode(manifest)
	if block == nil {
		return deaierr.New(deaierr.InvalidType, "verify_plugins: %q is not a clearsigned manifest", manifestPath)
	}
	if _, err := openpgp.CheckDetachedSignature(TrustedKeyring, bytes.NewReader(block.Bytes), block.ArmoredSignature.Body, nil); err != nil {
		return deaierr.Wrap(deaierr.Other, err, "verify_plugins: signature check failed for %q", manifestPath)
	}

	digest, err := hashFile(path)
	if err != nil {
		return deaierr.Wrap(deaierr.Other, err, "verify_plugins: hashing %q", path)
	}
	want := strings.TrimSpace(string(block.Plaintext))
	if !strings.EqualFold(want, digest) {
		return deaierr.New(deaierr.Other, "verify_plugins: %q digest mismatch (manifest says %s, computed %s)", path, want, digest)
	}
	return nil
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha256.New()
	buf := make([]byte, 64*1024)
	for {
		n, err := f.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
