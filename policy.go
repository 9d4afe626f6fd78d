package blobx

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"go.uber.org/atomic"
)

// Policy names accepted by NewPolicy.
const (
	PolicyRandom     = "random"
	PolicyRoundRobin = "round_robin"
	PolicyWeighted   = "weighted"
	PolicyFixed      = "fixed"
)

// SelectionPolicy picks the provider that receives a new object.
// Implementations only ever return registered providers.
type SelectionPolicy interface {
	Choose() Provider
}

// Randomizer is the source of randomness used by the random policies.
// *rand.Rand from math/rand/v2 satisfies it.
type Randomizer interface {
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) IntN(n int) int { return rand.IntN(n) }

// lockedRand serializes access to a Randomizer that is not safe for
// concurrent use.
type lockedRand struct {
	mu sync.Mutex
	r  Randomizer
}

func newLockedRand(r Randomizer) Randomizer {
	if r == nil {
		return globalRand{}
	}
	if _, ok := r.(globalRand); ok {
		return r
	}
	return &lockedRand{r: r}
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.IntN(n)
}

// RandomPolicy chooses uniformly among the registered providers.
type RandomPolicy struct {
	providers []Provider
	rng       Randomizer
}

// NewRandomPolicy returns a uniform random policy. A nil rng uses the
// process-wide source from math/rand/v2.
func NewRandomPolicy(providers []Provider, rng Randomizer) (*RandomPolicy, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return &RandomPolicy{
		providers: append([]Provider(nil), providers...),
		rng:       newLockedRand(rng),
	}, nil
}

func (p *RandomPolicy) Choose() Provider {
	if len(p.providers) == 1 {
		return p.providers[0]
	}
	return p.providers[p.rng.IntN(len(p.providers))]
}

// RoundRobinPolicy cycles through the registered providers in order.
type RoundRobinPolicy struct {
	providers []Provider
	next      atomic.Uint64
}

func NewRoundRobinPolicy(providers []Provider) (*RoundRobinPolicy, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	return &RoundRobinPolicy{providers: append([]Provider(nil), providers...)}, nil
}

func (p *RoundRobinPolicy) Choose() Provider {
	n := p.next.Inc() - 1
	return p.providers[n%uint64(len(p.providers))]
}

// WeightedPolicy chooses providers in proportion to their weights.
type WeightedPolicy struct {
	providers  []Provider
	cumulative []int
	total      int
	rng        Randomizer
}

// NewWeightedPolicy builds a weighted policy over the given providers.
// Every provider must carry a positive weight.
func NewWeightedPolicy(providers []Provider, weights map[Provider]int, rng Randomizer) (*WeightedPolicy, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}

	p := &WeightedPolicy{rng: newLockedRand(rng)}
	for _, prov := range providers {
		w, ok := weights[prov]
		if !ok || w <= 0 {
			return nil, fmt.Errorf("%w: provider %s needs a positive weight", ErrInvalidConfig, prov)
		}
		p.total += w
		p.providers = append(p.providers, prov)
		p.cumulative = append(p.cumulative, p.total)
	}
	for prov := range weights {
		if !containsProvider(providers, prov) {
			return nil, fmt.Errorf("%w: weight given for unregistered provider %s", ErrInvalidConfig, prov)
		}
	}
	return p, nil
}

func (p *WeightedPolicy) Choose() Provider {
	n := p.rng.IntN(p.total)
	for i, c := range p.cumulative {
		if n < c {
			return p.providers[i]
		}
	}
	return p.providers[len(p.providers)-1]
}

// FixedPolicy always chooses the same provider.
type FixedPolicy struct {
	provider Provider
}

func NewFixedPolicy(providers []Provider, provider Provider) (*FixedPolicy, error) {
	if len(providers) == 0 {
		return nil, ErrNoProviders
	}
	if !containsProvider(providers, provider) {
		return nil, fmt.Errorf("%w: fixed provider %s", ErrUnknownProvider, provider)
	}
	return &FixedPolicy{provider: provider}, nil
}

func (p *FixedPolicy) Choose() Provider { return p.provider }

// NewPolicy builds the policy named in cfg over the providers in reg.
func NewPolicy(cfg PolicyConfig, reg *Registry, rng Randomizer) (SelectionPolicy, error) {
	if reg == nil {
		return nil, ErrNoProviders
	}
	providers := reg.Providers()

	switch cfg.Name {
	case "", PolicyRandom:
		return NewRandomPolicy(providers, rng)
	case PolicyRoundRobin:
		return NewRoundRobinPolicy(providers)
	case PolicyWeighted:
		weights := make(map[Provider]int, len(cfg.Weights))
		for name, w := range cfg.Weights {
			p, err := ParseProvider(name)
			if err != nil {
				return nil, err
			}
			weights[p] = w
		}
		return NewWeightedPolicy(providers, weights, rng)
	case PolicyFixed:
		p, err := ParseProvider(cfg.FixedProvider)
		if err != nil {
			return nil, err
		}
		return NewFixedPolicy(providers, p)
	default:
		return nil, fmt.Errorf("%w: unknown selection policy %q", ErrInvalidConfig, cfg.Name)
	}
}

func containsProvider(providers []Provider, p Provider) bool {
	for _, candidate := range providers {
		if candidate == p {
			return true
		}
	}
	return false
}
