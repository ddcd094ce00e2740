//go:build contract

package contract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"petcontract/internal/apiclient"
	"petcontract/internal/core"
	"petcontract/internal/petstore"
	"petcontract/internal/scenario"
)

const replayBaseURL = "http://petstore.replay/v2"

type replayRoute struct {
	statusCode int
	golden     string
	body       []byte
}

// replayTransport answers requests with golden files instead of the network. Bodies are
// loaded up front because RoundTrip runs on runner goroutines.
type replayTransport struct {
	routes map[string]replayRoute
}

func (rt *replayTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := req.Method + " " + strings.TrimPrefix(req.URL.Path, "/v2")
	route, ok := rt.routes[key]
	if !ok {
		body := fmt.Sprintf(`{"code":404,"type":"unknown","message":"missing replay route: %s"}`, key)
		return replayResponse(req, http.StatusNotFound, []byte(body)), nil
	}

	statusCode := route.statusCode
	if statusCode == 0 {
		statusCode = http.StatusOK
	}
	return replayResponse(req, statusCode, route.body), nil
}

func replayResponse(req *http.Request, statusCode int, body []byte) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Status:     fmt.Sprintf("%d %s", statusCode, http.StatusText(statusCode)),
		Header:     http.Header{"Content-Type": []string{"application/json"}},
		Body:       io.NopCloser(bytes.NewReader(body)),
		Request:    req,
	}
}

func newReplayRunner(t *testing.T) *scenario.Runner {
	t.Helper()

	rt := &replayTransport{
		routes: map[string]replayRoute{
			"GET /pet/10":             {golden: "petstore/pet_minimal.json"},
			"GET /pet/0":              {statusCode: http.StatusNotFound, golden: "petstore/pet_not_found.json"},
			"GET /store/inventory":    {golden: "petstore/inventory.json"},
			"GET /store/order/7":      {golden: "petstore/order.json"},
			"GET /user/contract-user": {golden: "petstore/user.json"},
		},
	}
	for key, route := range rt.routes {
		route.body = loadGoldenFileRaw(t, route.golden)
		rt.routes[key] = route
	}
	client := apiclient.New(replayBaseURL, apiclient.WithHTTPClient(&http.Client{Transport: rt}))
	return scenario.NewRunner(client, scenario.WithParallelism(2))
}

func TestReplay_RecordedResponsesSatisfyScenarios(t *testing.T) {
	scenarios := []*scenario.Scenario{
		{
			Name: "replay: pet chain",
			Vars: map[string]any{"petId": 10},
			Steps: []scenario.Step{
				{
					Name:    "get pet",
					Request: scenario.Request{Method: http.MethodGet, Path: "/pet/{{petId}}"},
					Expect: []scenario.Assertion{
						scenario.Status(http.StatusOK),
						scenario.HeaderContains("Content-Type", "application/json"),
						scenario.MatchesSchema(petstore.PetSchema()),
						scenario.BodyField("name", "doggie"),
					},
					Capture: map[string]string{"fetchedId": "id"},
				},
				{
					Name:    "get pet again",
					Request: scenario.Request{Method: http.MethodGet, Path: "/pet/{{fetchedId}}"},
					Expect: []scenario.Assertion{
						scenario.Status(http.StatusOK),
						scenario.BodyField("id", "{{petId}}"),
					},
				},
				{
					Name:    "get unknown pet",
					Request: scenario.Request{Method: http.MethodGet, Path: "/pet/0"},
					Expect: []scenario.Assertion{
						scenario.Status(http.StatusNotFound),
						scenario.BodyField("message", "Pet not found"),
					},
				},
			},
		},
		{
			Name: "replay: store and user",
			Steps: []scenario.Step{
				{
					Name:    "inventory",
					Request: scenario.Request{Method: http.MethodGet, Path: "/store/inventory"},
					Expect:  []scenario.Assertion{scenario.Status(http.StatusOK), scenario.MatchesSchema(petstore.InventorySchema())},
				},
				{
					Name:    "order",
					Request: scenario.Request{Method: http.MethodGet, Path: "/store/order/7"},
					Expect: []scenario.Assertion{
						scenario.MatchesSchema(petstore.OrderSchema()),
						scenario.BodyField("petId", 10),
						scenario.BodyField("complete", true),
					},
				},
				{
					Name:    "user",
					Request: scenario.Request{Method: http.MethodGet, Path: "/user/contract-user"},
					Expect:  []scenario.Assertion{scenario.MatchesSchema(petstore.UserSchema()), scenario.BodyHasField("email")},
				},
			},
		},
	}

	results := newReplayRunner(t).RunAll(context.Background(), scenarios)

	require.Len(t, results, 2)
	for i, res := range results {
		assert.Equal(t, scenarios[i].Name, res.Scenario, "results keep input order")
		failed, hasFailure := res.FailedStep()
		assert.True(t, res.Passed, "failed step %q: %v", failed.Name, failed.Err)
		assert.False(t, hasFailure)
		assert.Equal(t, len(scenarios[i].Steps), res.Count(scenario.OutcomePassed))
	}
}

func TestReplay_SchemaMismatchAbortsScenario(t *testing.T) {
	sc := &scenario.Scenario{
		Name: "replay: wrong contract",
		Steps: []scenario.Step{
			{
				Name:    "order read as user",
				Request: scenario.Request{Method: http.MethodGet, Path: "/store/order/7"},
				Expect:  []scenario.Assertion{scenario.Status(http.StatusOK), scenario.MatchesSchema(petstore.UserSchema())},
			},
			{
				Name:    "never sent",
				Request: scenario.Request{Method: http.MethodGet, Path: "/store/inventory"},
				Expect:  []scenario.Assertion{scenario.Status(http.StatusOK)},
			},
		},
	}

	res := newReplayRunner(t).Run(context.Background(), sc)

	assert.False(t, res.Passed)
	failed, ok := res.FailedStep()
	require.True(t, ok)
	assert.Equal(t, "order read as user", failed.Name)
	assert.Equal(t, core.ErrorTypeSchema, core.TypeOf(failed.Err))
	assert.Equal(t, 1, res.Count(scenario.OutcomeSkipped))
}

func TestReplay_MissingRouteFailsStatusCheck(t *testing.T) {
	sc := &scenario.Scenario{
		Name: "replay: unrecorded",
		Steps: []scenario.Step{{
			Name:    "unrecorded order",
			Request: scenario.Request{Method: http.MethodGet, Path: "/store/order/99"},
			Expect:  []scenario.Assertion{scenario.Status(http.StatusOK)},
		}},
	}

	res := newReplayRunner(t).Run(context.Background(), sc)

	failed, ok := res.FailedStep()
	require.True(t, ok)
	assert.Equal(t, http.StatusNotFound, failed.Status)
	assert.Equal(t, core.ErrorTypeAssertion, core.TypeOf(failed.Err))
}
