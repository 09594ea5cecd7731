package llm

import (
	"fmt"
	"math/rand/v2"
	"sync/atomic"
)

// TokenSelector picks the bearer token to use for one outbound call.
type TokenSelector interface {
	Token() string
}

// StaticToken always returns the same token.
type StaticToken string

func (t StaticToken) Token() string { return string(t) }

// RoundRobinTokens cycles through a fixed token pool.
type RoundRobinTokens struct {
	tokens []string
	next   atomic.Uint64
}

// NewRoundRobinTokens builds a selector that hands out tokens in order.
func NewRoundRobinTokens(tokens []string) (*RoundRobinTokens, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("token pool is empty")
	}
	return &RoundRobinTokens{tokens: append([]string(nil), tokens...)}, nil
}

func (t *RoundRobinTokens) Token() string {
	n := t.next.Add(1) - 1
	return t.tokens[n%uint64(len(t.tokens))]
}

// RandomTokens picks a token uniformly at random per call.
type RandomTokens struct {
	tokens []string
}

// NewRandomTokens builds a selector that picks uniformly from the pool.
func NewRandomTokens(tokens []string) (*RandomTokens, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("token pool is empty")
	}
	return &RandomTokens{tokens: append([]string(nil), tokens...)}, nil
}

func (t *RandomTokens) Token() string {
	return t.tokens[rand.IntN(len(t.tokens))]
}

// NewTokenSelector builds a selector from a strategy name. An empty strategy
// defaults to random to spread load across the pool.
func NewTokenSelector(strategy string, tokens []string) (TokenSelector, error) {
	switch strategy {
	case "static":
		if len(tokens) == 0 {
			return nil, fmt.Errorf("token pool is empty")
		}
		return StaticToken(tokens[0]), nil
	case "round_robin":
		return NewRoundRobinTokens(tokens)
	case "random", "":
		return NewRandomTokens(tokens)
	default:
		return nil, fmt.Errorf("unknown token strategy %q", strategy)
	}
}
