package session

import (
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/quantumauth-io/quantum-pay-client/internal/constants"
	"github.com/quantumauth-io/quantum-pay-client/internal/securefile"
)

// Store is the durable key/value mirror of the session.
type Store interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Delete(keys ...string) error
}

// Persisted is what a previous run left behind.
type Persisted struct {
	Address      string
	ProviderName string
	ChainID      string
}

// Load reads the persisted session keys. ok is false when no address and
// provider were stored.
func Load(s Store) (p Persisted, ok bool, err error) {
	get := func(key string) string {
		if err != nil {
			return ""
		}
		var v string
		v, _, err = s.Get(key)
		return v
	}
	p.Address = get(constants.StorageKeyAddress)
	p.ProviderName = get(constants.StorageKeyProvider)
	p.ChainID = get(constants.StorageKeyChainID)
	if err != nil {
		return Persisted{}, false, err
	}
	return p, p.Address != "" && p.ProviderName != "", nil
}

type MemoryStore struct {
	mu   sync.Mutex
	vals map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{vals: map[string]string{}}
}

func (s *MemoryStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vals[key]
	return v, ok, nil
}

func (s *MemoryStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vals[key] = value
	return nil
}

func (s *MemoryStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.vals, k)
	}
	return nil
}

type fileState struct {
	Schema int               `json:"schema"`
	Values map[string]string `json:"values"`
}

// FileStore keeps the keys in one owner-only JSON file.
type FileStore struct {
	mu   sync.Mutex
	path string
}

func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// OpenDefaultFileStore places the file under the user's config dir.
func OpenDefaultFileStore() (*FileStore, error) {
	path, err := securefile.ResolvePath(constants.AppName, constants.SessionFile)
	if err != nil {
		return nil, errors.Wrap(err, "resolve session path")
	}
	return NewFileStore(path), nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) load() (fileState, error) {
	st, err := securefile.ReadJSON[fileState](s.path)
	if errors.Is(err, securefile.ErrNotFound) {
		return fileState{Schema: constants.SchemaV1, Values: map[string]string{}}, nil
	}
	if err != nil {
		return fileState{}, err
	}
	if st.Schema != constants.SchemaV1 {
		return fileState{}, errors.Newf("unsupported session schema %d", st.Schema)
	}
	if st.Values == nil {
		st.Values = map[string]string{}
	}
	return st, nil
}

func (s *FileStore) Get(key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return "", false, err
	}
	v, ok := st.Values[key]
	return v, ok, nil
}

func (s *FileStore) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	if cur, ok := st.Values[key]; ok && cur == value {
		return nil
	}
	st.Values[key] = value
	return securefile.WriteJSON(s.path, st)
}

// Delete removes keys; the file goes away once it is empty.
func (s *FileStore) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	for _, k := range keys {
		delete(st.Values, k)
	}
	if len(st.Values) == 0 {
		return securefile.Remove(s.path)
	}
	return securefile.WriteJSON(s.path, st)
}
