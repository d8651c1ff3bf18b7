// Package credential resolves the process-wide MyXL API key.
//
// Resolution is lazy and ordered: an explicitly set value, then the
// environment variable, then a local key file. The first non-empty source
// wins and is kept for the lifetime of the process. Sources are consulted
// again only while the cached value is empty.
package credential

import (
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	gwerr "github.com/example/myxl-gateway/pkg/errors"
)

const (
	MsgEmpty   = "API key kosong."
	MsgMissing = "Set MYXL_API_KEY terlebih dahulu."
)

// Source tells where the cached key came from.
type Source string

const (
	SourceNone   Source = ""
	SourceMemory Source = "memory"
	SourceEnv    Source = "env"
	SourceFile   Source = "file"
)

type Resolver struct {
	envVar  string
	keyFile string
	getenv  func(string) string
	read    func(string) ([]byte, error)

	mu     sync.Mutex
	value  string
	source Source
}

// NewResolver builds a resolver for envVar and the key file at
// filepath.Join(root, file).
func NewResolver(envVar, root, file string) *Resolver {
	return &Resolver{
		envVar:  envVar,
		keyFile: filepath.Join(root, file),
		getenv:  os.Getenv,
		read:    os.ReadFile,
	}
}

// Get returns the cached key, resolving it first if nothing is cached.
// An empty result means no source produced a key.
func (r *Resolver) Get() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.value == "" {
		r.value, r.source = r.resolve()
	}
	return r.value
}

// IsSet reports whether a key resolves.
func (r *Resolver) IsSet() bool { return r.Get() != "" }

// Source reports where the current key came from.
func (r *Resolver) Source() Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.source
}

// Set overwrites the in-memory key. A blank value still overwrites (the key
// becomes unset) and is reported as InvalidInput.
func (r *Resolver) Set(v string) error {
	v = strings.TrimSpace(v)
	r.mu.Lock()
	r.value = v
	r.source = SourceMemory
	if v == "" {
		r.source = SourceNone
	}
	r.mu.Unlock()

	if v == "" {
		return gwerr.InvalidInput(MsgEmpty)
	}
	return nil
}

// Require returns the key or a Precondition error.
func (r *Resolver) Require() (string, error) {
	if k := r.Get(); k != "" {
		return k, nil
	}
	return "", gwerr.Precondition(MsgMissing)
}

func (r *Resolver) resolve() (string, Source) {
	if v := strings.TrimSpace(r.getenv(r.envVar)); v != "" {
		logrus.WithField("source", SourceEnv).Debug("api key loaded")
		return v, SourceEnv
	}
	b, err := r.read(r.keyFile)
	if err != nil {
		if !os.IsNotExist(err) {
			logrus.WithError(err).WithField("path", r.keyFile).Warn("read api key file")
		}
		return "", SourceNone
	}
	if v := strings.TrimSpace(string(b)); v != "" {
		logrus.WithField("source", SourceFile).Debug("api key loaded")
		return v, SourceFile
	}
	return "", SourceNone
}
