package scraper

import (
	"math/rand/v2"

	"github.com/aluiziolira/go-catalog-harvester/config"
)

// UserAgentPool hands out browser user agents for new sessions.
type UserAgentPool struct {
	agents []string
}

// NewUserAgentPool falls back to config.DefaultUserAgents when agents is empty.
func NewUserAgentPool(agents []string) *UserAgentPool {
	if len(agents) == 0 {
		agents = config.DefaultUserAgents()
	}
	return &UserAgentPool{agents: agents}
}

// Pick returns a random user agent.
func (p *UserAgentPool) Pick() string {
	return p.agents[rand.IntN(len(p.agents))]
}
