// Package pairing keeps the token that pairs this client with a wallet agent.
package pairing

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-pay-client/internal/constants"
	"github.com/quantumauth-io/quantum-pay-client/internal/provider"
	"github.com/quantumauth-io/quantum-pay-client/internal/securefile"
)

var ErrNotPaired = errors.New("pairing: no agent token")

type record struct {
	Schema   int       `json:"schema"`
	AgentURL string    `json:"agentUrl"`
	Token    string    `json:"token"`
	PairedAt time.Time `json:"pairedAt"`
}

type Store struct {
	path string
}

func NewStore(path string) *Store { return &Store{path: path} }

func OpenDefaultStore() (*Store, error) {
	p, err := securefile.ResolvePath(constants.AppName, constants.PairingFile)
	if err != nil {
		return nil, err
	}
	return NewStore(p), nil
}

func (s *Store) Path() string { return s.path }

// Save records token for agentURL, replacing any earlier pairing.
func (s *Store) Save(agentURL, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return errors.New("pairing: empty token")
	}
	return securefile.WriteJSON(s.path, record{
		Schema:   constants.SchemaV1,
		AgentURL: normalizeURL(agentURL),
		Token:    token,
		PairedAt: time.Now().UTC(),
	})
}

// Token returns the stored token for agentURL. A token paired with another
// agent is not handed out.
func (s *Store) Token(agentURL string) (string, error) {
	rec, err := securefile.ReadJSON[record](s.path)
	if errors.Is(err, securefile.ErrNotFound) {
		return "", ErrNotPaired
	}
	if err != nil {
		return "", err
	}
	if rec.Token == "" || rec.AgentURL != normalizeURL(agentURL) {
		return "", ErrNotPaired
	}
	return rec.Token, nil
}

func (s *Store) Forget() error { return securefile.Remove(s.path) }

// Resolve picks the configured token when set, else the stored one.
func Resolve(configured, agentURL string, s *Store) (string, error) {
	if t := strings.TrimSpace(configured); t != "" {
		return t, nil
	}
	if s == nil {
		return "", ErrNotPaired
	}
	return s.Token(agentURL)
}

// Status is what the pairing endpoint reports. The token itself never leaves the process.
type Status struct {
	AgentURL string    `json:"agentUrl"`
	Paired   bool      `json:"paired"`
	PairedAt time.Time `json:"pairedAt,omitempty"`
}

// Link ties the stored pairing to the token the running agent wallets send.
type Link struct {
	store    *Store
	agentURL string
	token    *provider.AgentToken
}

func NewLink(store *Store, agentURL string, token *provider.AgentToken) *Link {
	return &Link{store: store, agentURL: agentURL, token: token}
}

// Pair persists token and starts sending it on the next agent request.
func (l *Link) Pair(token string) error {
	if err := l.store.Save(l.agentURL, token); err != nil {
		return err
	}
	l.token.Set(token)
	log.Info("wallet agent paired", "agent", l.agentURL, "pairing_file", l.store.Path())
	return nil
}

// Unpair forgets the stored token and stops sending one.
func (l *Link) Unpair() error {
	if err := l.store.Forget(); err != nil {
		return err
	}
	l.token.Set("")
	log.Info("wallet agent unpaired", "agent", l.agentURL)
	return nil
}

func (l *Link) Status() Status {
	st := Status{AgentURL: l.agentURL, Paired: l.token.Get() != ""}
	if rec, err := securefile.ReadJSON[record](l.store.path); err == nil && rec.AgentURL == normalizeURL(l.agentURL) {
		st.PairedAt = rec.PairedAt
	}
	return st
}

func normalizeURL(u string) string {
	return strings.ToLower(strings.TrimRight(strings.TrimSpace(u), "/"))
}
