package catalog

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/MrEthical07/goReset/internal"
)

var (
	ErrChallengeNotFound = errors.New("challenge not found")
	ErrEmptyCatalog      = errors.New("catalog has no challenges")
	ErrInvalidEntry      = errors.New("invalid catalog entry")
)

// MaxID is the largest challenge id a token record (and the reset_tokens
// INTEGER column) can hold.
const MaxID = 1<<31 - 1

// Selection controls how Pick chooses a challenge.
type Selection string

const (
	SelectRandom     Selection = "random"
	SelectRoundRobin Selection = "round_robin"
)

// Entry is one captcha challenge.
type Entry struct {
	ID     int    `json:"id"`
	Answer string `json:"answer"`
	Image  string `json:"image"`
}

// Challenge is what Pick returns: the id bound into the token and the
// reference notifiers embed in the outbound message.
type Challenge struct {
	ID         int
	DisplayRef string
}

type Options struct {
	Selection     Selection
	CaseSensitive bool
	Resolver      Resolver
}

type Catalog struct {
	entries       []Entry
	byID          map[int]int
	selection     Selection
	caseSensitive bool
	resolver      Resolver
	cursor        atomic.Uint64
}

// New validates entries and freezes them into a Catalog.
func New(entries []Entry, opts Options) (*Catalog, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyCatalog
	}

	switch opts.Selection {
	case "":
		opts.Selection = SelectRandom
	case SelectRandom, SelectRoundRobin:
	default:
		return nil, fmt.Errorf("unknown catalog selection %q", opts.Selection)
	}

	c := &Catalog{
		entries:       make([]Entry, len(entries)),
		byID:          make(map[int]int, len(entries)),
		selection:     opts.Selection,
		caseSensitive: opts.CaseSensitive,
		resolver:      opts.Resolver,
	}

	for i, e := range entries {
		if e.ID < 0 {
			return nil, fmt.Errorf("%w: negative id %d", ErrInvalidEntry, e.ID)
		}
		if e.ID > MaxID {
			return nil, fmt.Errorf("%w: id %d above %d", ErrInvalidEntry, e.ID, MaxID)
		}
		if strings.TrimSpace(e.Answer) == "" {
			return nil, fmt.Errorf("%w: empty answer for id %d", ErrInvalidEntry, e.ID)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %d", ErrInvalidEntry, e.ID)
		}
		c.entries[i] = e
		c.byID[e.ID] = i
	}

	return c, nil
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

// Pick selects a challenge according to the configured selection policy.
func (c *Catalog) Pick() (Challenge, error) {
	return c.PickContext(context.Background())
}

// PickContext is Pick with a context for resolvers that sign URLs remotely.
func (c *Catalog) PickContext(ctx context.Context) (Challenge, error) {
	idx, err := c.nextIndex()
	if err != nil {
		return Challenge{}, err
	}

	e := c.entries[idx]
	ref, err := c.displayRef(ctx, e)
	if err != nil {
		return Challenge{}, err
	}
	return Challenge{ID: e.ID, DisplayRef: ref}, nil
}

// DisplayRef resolves the display reference for a known challenge id.
func (c *Catalog) DisplayRef(ctx context.Context, id int) (string, error) {
	idx, ok := c.byID[id]
	if !ok {
		return "", ErrChallengeNotFound
	}
	return c.displayRef(ctx, c.entries[idx])
}

func (c *Catalog) ExpectedAnswer(id int) (string, error) {
	idx, ok := c.byID[id]
	if !ok {
		return "", ErrChallengeNotFound
	}
	return c.entries[idx].Answer, nil
}

// Match compares supplied against the expected answer in constant time.
// Surrounding whitespace is ignored; case is ignored unless CaseSensitive.
func (c *Catalog) Match(id int, supplied string) (bool, error) {
	expected, err := c.ExpectedAnswer(id)
	if err != nil {
		return false, err
	}

	a := strings.TrimSpace(expected)
	b := strings.TrimSpace(supplied)
	if !c.caseSensitive {
		a = strings.ToLower(a)
		b = strings.ToLower(b)
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1, nil
}

func (c *Catalog) nextIndex() (int, error) {
	if len(c.entries) == 0 {
		return 0, ErrEmptyCatalog
	}
	if c.selection == SelectRoundRobin {
		n := c.cursor.Add(1) - 1
		return int(n % uint64(len(c.entries))), nil
	}
	return internal.RandomIndex(len(c.entries))
}

func (c *Catalog) displayRef(ctx context.Context, e Entry) (string, error) {
	if c.resolver == nil {
		return e.Image, nil
	}
	return c.resolver.Resolve(ctx, e)
}
