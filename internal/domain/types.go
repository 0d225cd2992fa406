package domain

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Type is the stable tag of a transaction kind.
type Type string

const (
	// TypeDeposit records money placed with the receiving agent.
	TypeDeposit Type = "DEPOSIT"
	// TypeCredit records value credited to the receiving agent.
	TypeCredit Type = "CREDIT"
)

var typeTagPattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]{0,63}$`)

// TypeRegistry is the set of transaction kinds a process accepts.
type TypeRegistry struct {
	mu    sync.RWMutex
	types map[Type]struct{}
}

// NewTypeRegistry returns a registry holding the given tags.
func NewTypeRegistry(types ...Type) *TypeRegistry {
	r := &TypeRegistry{types: make(map[Type]struct{}, len(types))}
	for _, t := range types {
		r.types[t] = struct{}{}
	}

	return r
}

// DefaultTypes is the process-wide registry, pre-loaded with the built-in kinds.
var DefaultTypes = NewTypeRegistry(TypeDeposit, TypeCredit)

// Register adds a kind. Tags are upper-case identifiers; registering an
// existing tag is a no-op.
func (r *TypeRegistry) Register(t Type) error {
	if !typeTagPattern.MatchString(string(t)) {
		return fmt.Errorf("%w: malformed tag %q", ErrInvalidTransactionType, t)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.types[t] = struct{}{}

	return nil
}

// IsRegistered reports whether t is a known kind.
func (r *TypeRegistry) IsRegistered(t Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.types[t]

	return ok
}

// Types lists registered tags in lexical order.
func (r *TypeRegistry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Type, 0, len(r.types))
	for t := range r.types {
		out = append(out, t)
	}

	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })

	return out
}

// New builds an unsaved transaction of kind t.
func (r *TypeRegistry) New(t Type, from, to Ref, amount decimal.Decimal, opts ...Option) (Transaction, error) {
	if !r.IsRegistered(t) {
		return Transaction{}, fmt.Errorf("%w: %q", ErrInvalidTransactionType, t)
	}

	txn := Transaction{
		Type:   t,
		From:   from,
		To:     to,
		Amount: amount,
	}

	for _, opt := range opts {
		opt(&txn)
	}

	return txn, nil
}

type typesFile struct {
	Types []string `yaml:"types"`
}

// LoadTypes registers every tag listed under "types:" in a YAML document.
func LoadTypes(src io.Reader, reg *TypeRegistry) ([]Type, error) {
	var doc typesFile
	if err := yaml.NewDecoder(src).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to decode types file: %w", err)
	}

	added := make([]Type, 0, len(doc.Types))
	for _, tag := range doc.Types {
		t := Type(tag)
		if err := reg.Register(t); err != nil {
			return added, err
		}

		added = append(added, t)
	}

	return added, nil
}
