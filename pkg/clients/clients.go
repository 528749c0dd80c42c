// Package clients manages the platform sessions a deployment runs and picks
// which one serves each dispatch.
package clients

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
)

const logPrefix = "clients:clients"

var (
	// ErrNoClientsConfigured is returned when a pool is built without sessions.
	ErrNoClientsConfigured = errors.New("no clients configured")
	// ErrUnsupportedShardingTopology is returned for sharding modes the pool cannot run.
	ErrUnsupportedShardingTopology = errors.New("unsupported sharding topology")
)

// Sharding modes.
const (
	ShardingOff     = "off"
	ShardingDefault = "default"
)

// Policy selects the client handed to a handler as its next client.
type Policy string

// Trigger policies.
const (
	// PolicyOneByOne round-robins per handler name.
	PolicyOneByOne Policy = "OneByOne"
	// PolicyOneByOneGlobal round-robins across all handlers.
	PolicyOneByOneGlobal Policy = "OneByOneGlobal"
	PolicyRandom         Policy = "Random"
	PolicyFirst          Policy = "First"
)

// Responder is the reply primitive the routers need from a session.
type Responder interface {
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
}

// Client is one platform connection of the deployment.
type Client struct {
	// Name is the client namespace handed to handlers.
	Name    string
	Session *discordgo.Session
	// Responder defaults to Session.
	Responder Responder
}

// Respond replies to interaction through the client's responder.
func (c *Client) Respond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse) error {
	if c.Responder != nil {
		return c.Responder.InteractionRespond(interaction, resp)
	}
	if c.Session == nil {
		return fmt.Errorf("%s - client %s has no session", logPrefix, c.Name)
	}
	return c.Session.InteractionRespond(interaction, resp)
}

// Pool holds the clients and the round-robin cursors.
type Pool struct {
	mu      sync.Mutex
	clients []*Client
	perName map[string]int
	global  int
	rnd     *rand.Rand
}

// NewPool creates a Pool. It fails with ErrNoClientsConfigured when empty.
func NewPool(clients ...*Client) (*Pool, error) {
	if len(clients) == 0 {
		return nil, ErrNoClientsConfigured
	}
	for i, c := range clients {
		if c.Name == "" {
			c.Name = fmt.Sprintf("client-%d", i)
		}
	}
	return &Pool{
		clients: clients,
		perName: make(map[string]int),
		rnd:     rand.New(rand.NewSource(rand.Int63())),
	}, nil
}

// Options describe how to build sessions from tokens.
type Options struct {
	Tokens     []string
	Sharding   string
	ShardCount int
	Intents    discordgo.Intent
}

// NewSessions builds one discordgo session per token, or ShardCount sessions
// for a single token under default sharding.
func NewSessions(opts Options) ([]*Client, error) {
	tokens := make([]string, 0, len(opts.Tokens))
	for _, t := range opts.Tokens {
		if t = strings.TrimSpace(t); t != "" {
			tokens = append(tokens, t)
		}
	}
	if len(tokens) == 0 {
		return nil, ErrNoClientsConfigured
	}

	sharding := opts.Sharding
	if sharding == "" {
		sharding = ShardingOff
	}

	switch sharding {
	case ShardingOff:
		out := make([]*Client, 0, len(tokens))
		for i, token := range tokens {
			s, err := newSession(token, opts.Intents)
			if err != nil {
				return nil, err
			}
			out = append(out, &Client{Name: fmt.Sprintf("client-%d", i), Session: s})
		}
		return out, nil
	case ShardingDefault:
		if len(tokens) != 1 {
			return nil, fmt.Errorf("%s - default sharding needs exactly one token, got %d: %w",
				logPrefix, len(tokens), ErrUnsupportedShardingTopology)
		}
		count := opts.ShardCount
		if count < 1 {
			count = 1
		}
		out := make([]*Client, 0, count)
		for shard := 0; shard < count; shard++ {
			s, err := newSession(tokens[0], opts.Intents)
			if err != nil {
				return nil, err
			}
			s.ShardID = shard
			s.ShardCount = count
			out = append(out, &Client{Name: fmt.Sprintf("shard-%d", shard), Session: s})
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%s - sharding %q: %w", logPrefix, sharding, ErrUnsupportedShardingTopology)
	}
}

func newSession(token string, intents discordgo.Intent) (*discordgo.Session, error) {
	if !strings.HasPrefix(token, "Bot ") {
		token = "Bot " + token
	}
	s, err := discordgo.New(token)
	if err != nil {
		return nil, fmt.Errorf("%s - failed to create session: %w", logPrefix, err)
	}
	if intents != 0 {
		s.Identify.Intents = intents
	}
	return s, nil
}

// All returns the clients in configuration order.
func (p *Pool) All() []*Client {
	out := make([]*Client, len(p.clients))
	copy(out, p.clients)
	return out
}

// First returns the first client.
func (p *Pool) First() *Client { return p.clients[0] }

// Len returns the number of clients.
func (p *Pool) Len() int { return len(p.clients) }

// BySession finds the client wrapping s.
func (p *Pool) BySession(s *discordgo.Session) *Client {
	for _, c := range p.clients {
		if c.Session == s {
			return c
		}
	}
	return nil
}

// Next picks the client for a dispatch of handler name under policy. An empty
// policy behaves like PolicyFirst.
func (p *Pool) Next(policy Policy, name string) *Client {
	if len(p.clients) == 1 {
		return p.clients[0]
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	switch policy {
	case PolicyOneByOne:
		i := p.perName[name] % len(p.clients)
		p.perName[name] = i + 1
		return p.clients[i]
	case PolicyOneByOneGlobal:
		i := p.global % len(p.clients)
		p.global = i + 1
		return p.clients[i]
	case PolicyRandom:
		return p.clients[p.rnd.Intn(len(p.clients))]
	case PolicyFirst, "":
		return p.clients[0]
	default:
		slog.Warn(fmt.Sprintf("%s - unknown policy %q for %s, using first client", logPrefix, policy, name))
		return p.clients[0]
	}
}
