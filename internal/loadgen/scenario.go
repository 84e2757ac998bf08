// Package loadgen drives synthetic access probes against a running API.
package loadgen

import (
	"math/rand"
	"sync"
	"time"

	"orgguard.dev/internal/access"
)

type Probe struct {
	Email     string
	ModuleKey string
	Action    access.Action
}

type Scenario struct {
	Name    string
	Users   []string
	Modules []string
	Actions []access.Action
}

// DemoScenario targets the org-scoped users provisioned by the demo seed.
func DemoScenario() Scenario {
	var users []string
	for _, suffix := range []string{"a", "b"} {
		for _, prefix := range []string{"orgadmin", "orgmanager", "orgemployee1", "orgemployee2", "orgemployee3"} {
			users = append(users, prefix+suffix+"@demo.com")
		}
	}
	modules := make([]string, 0, len(access.DefaultModules))
	for _, m := range access.DefaultModules {
		modules = append(modules, m.Key)
	}
	return Scenario{
		Name:    "DemoTenants",
		Users:   users,
		Modules: modules,
		Actions: access.Actions(),
	}
}

// Generator picks probes at random. It is safe for concurrent use.
type Generator struct {
	scenario Scenario
	mu       sync.Mutex
	rnd      *rand.Rand
}

func NewGenerator(s Scenario, seed int64) *Generator {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Generator{scenario: s, rnd: rand.New(rand.NewSource(seed))}
}

func (g *Generator) Next() Probe {
	s := g.scenario
	if len(s.Users) == 0 || len(s.Modules) == 0 || len(s.Actions) == 0 {
		panic("loadgen: scenario requires users, modules and actions")
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return Probe{
		Email:     s.Users[g.rnd.Intn(len(s.Users))],
		ModuleKey: s.Modules[g.rnd.Intn(len(s.Modules))],
		Action:    s.Actions[g.rnd.Intn(len(s.Actions))],
	}
}

func (g *Generator) Users() []string {
	return append([]string(nil), g.scenario.Users...)
}
