package petstore

import (
	"net/http"

	"petcontract/internal/scenario"
)

// UserScenarios covers /user: bulk creation, lifecycle, session endpoints and unknown users.
func UserScenarios(opts Options) []*scenario.Scenario {
	opts = opts.withDefaults()
	return []*scenario.Scenario{
		bulkCreate("createWithList", opts),
		bulkCreateRejectsObject("createWithList", opts),
		bulkCreate("createWithArray", opts),
		bulkCreateRejectsObject("createWithArray", opts),
		userLifecycle(opts),
		userNotFound(opts),
	}
}

func userPayload() map[string]any {
	return map[string]any{
		"id":         "{{userId}}",
		"username":   "{{username}}",
		"firstName":  "John",
		"lastName":   "Armstrong",
		"email":      "john-test@gmail.com",
		"password":   "1qaz@WSX",
		"phone":      "+996123456789",
		"userStatus": 12,
	}
}

func userVars(fx Fixtures) map[string]any {
	return map[string]any{"userId": fx.UserID, "username": fx.Username}
}

func bulkCreate(endpoint string, opts Options) *scenario.Scenario {
	fx := opts.NewFixtures()
	return &scenario.Scenario{
		Name: "users: " + endpoint,
		Tags: []string{"users"},
		Vars: userVars(fx),
		Steps: []scenario.Step{
			{
				Name: "POST /user/" + endpoint + " creates users from an array",
				Request: scenario.Request{
					Method: http.MethodPost,
					Path:   "/user/" + endpoint,
					Body:   []any{userPayload()},
				},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.BodyEquals(map[string]any{"code": 200, "type": "unknown", "message": "ok"}),
				},
			},
			{
				Name:    "DELETE /user/{username} removes the created user",
				Request: scenario.Request{Method: http.MethodDelete, Path: "/user/{{username}}"},
				Expect:  []scenario.Assertion{scenario.Status(200)},
			},
		},
	}
}

func bulkCreateRejectsObject(endpoint string, opts Options) *scenario.Scenario {
	fx := opts.NewFixtures()
	return &scenario.Scenario{
		Name: "users: " + endpoint + " rejects a single object",
		Tags: []string{"users", "negative"},
		Vars: userVars(fx),
		Steps: []scenario.Step{
			{
				Name: "POST /user/" + endpoint + " with an object fails",
				Request: scenario.Request{
					Method: http.MethodPost,
					Path:   "/user/" + endpoint,
					Body:   userPayload(),
				},
				Expect: []scenario.Assertion{
					scenario.Status(500),
					scenario.BodyField("code", 500),
					scenario.BodyField("message", "something bad happened"),
				},
			},
		},
	}
}

func userLifecycle(opts Options) *scenario.Scenario {
	fx := opts.NewFixtures()
	user := userPayload()
	updated := userPayload()
	updated["phone"] = "+996646457383"

	return &scenario.Scenario{
		Name:        "users: lifecycle",
		Description: "create a user, read it back unchanged, update it, log in and out, then delete it",
		Tags:        []string{"users"},
		Vars:        userVars(fx),
		Steps: []scenario.Step{
			{
				Name:    "POST /user creates a user",
				Request: scenario.Request{Method: http.MethodPost, Path: "/user", Body: user},
				Expect:  []scenario.Assertion{scenario.Status(200)},
			},
			{
				Name:    "GET /user/{username} returns the submitted user",
				Request: scenario.Request{Method: http.MethodGet, Path: "/user/{{username}}"},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.BodyEquals(user),
				},
			},
			{
				Name:    "GET /user/{username} responds with JSON within the latency budget",
				Request: scenario.Request{Method: http.MethodGet, Path: "/user/{{username}}"},
				Expect:  readChecks(opts.LatencyBudget),
			},
			{
				Name:    "GET /user/{username} matches the user schema",
				Request: scenario.Request{Method: http.MethodGet, Path: "/user/{{username}}"},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.MatchesSchema(UserSchema()),
				},
			},
			{
				Name:    "PUT /user/{username} updates the phone number",
				Request: scenario.Request{Method: http.MethodPut, Path: "/user/{{username}}", Body: updated},
				Expect:  []scenario.Assertion{scenario.Status(200)},
			},
			{
				Name: "GET /user/login accepts the credentials",
				Request: scenario.Request{
					Method: http.MethodGet,
					Path:   "/user/login",
					Query:  map[string]string{"username": "{{username}}", "password": "1qaz@WSX"},
				},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.BodyHasField("message"),
				},
			},
			{
				Name:    "GET /user/logout ends the session",
				Request: scenario.Request{Method: http.MethodGet, Path: "/user/logout"},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.BodyField("message", "ok"),
				},
			},
			{
				Name:    "DELETE /user/{username} deletes the user",
				Request: scenario.Request{Method: http.MethodDelete, Path: "/user/{{username}}"},
				Expect:  []scenario.Assertion{scenario.Status(200)},
			},
		},
	}
}

func userNotFound(opts Options) *scenario.Scenario {
	fx := opts.NewFixtures()
	return &scenario.Scenario{
		Name: "users: unknown username",
		Tags: []string{"users", "negative"},
		Vars: map[string]any{"missingUser": fx.MissingUser},
		Steps: []scenario.Step{
			{
				Name:    "GET /user/{username} of an unknown user is not found",
				Request: scenario.Request{Method: http.MethodGet, Path: "/user/{{missingUser}}"},
				Expect: []scenario.Assertion{
					scenario.Status(404),
					scenario.StatusText("Not Found"),
					scenario.BodyField("message", "User not found"),
				},
			},
			{
				Name:    "DELETE /user/{username} of an unknown user is not found",
				Request: scenario.Request{Method: http.MethodDelete, Path: "/user/{{missingUser}}"},
				Expect: []scenario.Assertion{
					scenario.Status(404),
					scenario.StatusText("Not Found"),
				},
			},
		},
	}
}
