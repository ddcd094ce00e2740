// Package petstore holds the built-in contract scenarios for the pet store API:
// pets, store orders and users.
package petstore

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"petcontract/internal/scenario"
)

// DefaultLatencyBudget bounds read-path responses in nominal conditions
const DefaultLatencyBudget = 500 * time.Millisecond

// Options tune the generated scenarios.
type Options struct {
	// LatencyBudget is the ceiling for read-path latency checks.
	LatencyBudget time.Duration
	// UploadName and UploadContent are the file sent to /pet/{petId}/uploadImage.
	UploadName    string
	UploadContent []byte
	// NewFixtures produces the identifiers for each scenario. Defaults to NewFixtures.
	NewFixtures func() Fixtures
	// Now stamps order ship dates. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.LatencyBudget <= 0 {
		o.LatencyBudget = DefaultLatencyBudget
	}
	if o.UploadName == "" {
		o.UploadName = "petcontract.png"
	}
	if len(o.UploadContent) == 0 {
		o.UploadContent = placeholderPNG
	}
	if o.NewFixtures == nil {
		o.NewFixtures = NewFixtures
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// placeholderPNG is a 1x1 transparent PNG.
var placeholderPNG = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0x00, 0x01, 0x00, 0x00,
	0x05, 0x00, 0x01, 0x0d, 0x0a, 0x2d, 0xb4, 0x00, 0x00, 0x00, 0x00, 0x49,
	0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

var suites = map[string]func(Options) []*scenario.Scenario{
	"pets":  PetScenarios,
	"store": StoreScenarios,
	"users": UserScenarios,
}

// SuiteNames lists the built-in suites in sorted order.
func SuiteNames() []string {
	names := make([]string, 0, len(suites))
	for name := range suites {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build returns the scenarios of the named suites, or of every suite when names is empty.
// Each call generates fresh fixtures.
func Build(names []string, opts Options) ([]*scenario.Scenario, error) {
	if len(names) == 0 {
		names = SuiteNames()
	}
	opts = opts.withDefaults()

	var out []*scenario.Scenario
	for _, name := range names {
		build, ok := suites[strings.ToLower(strings.TrimSpace(name))]
		if !ok {
			return nil, fmt.Errorf("unknown suite %q (available: %s)", name, strings.Join(SuiteNames(), ", "))
		}
		out = append(out, build(opts)...)
	}
	return out, nil
}

// readChecks are the expectations shared by every read-path latency probe.
func readChecks(budget time.Duration) []scenario.Assertion {
	return []scenario.Assertion{
		scenario.Status(200),
		scenario.HasHeader("Content-Type"),
		scenario.HeaderContains("Content-Type", "application/json"),
		scenario.LatencyBelow(budget),
	}
}
