package petstore

import (
	"net/http"

	"petcontract/internal/apiclient"
	"petcontract/internal/scenario"
)

// PetScenarios covers /pet: lifecycle, image upload and the not-found paths.
func PetScenarios(opts Options) []*scenario.Scenario {
	opts = opts.withDefaults()
	return []*scenario.Scenario{
		petLifecycle(opts),
		petNotFound(),
		petDeleteUnknown(),
	}
}

func petLifecycle(opts Options) *scenario.Scenario {
	fx := opts.NewFixtures()
	return &scenario.Scenario{
		Name:        "pets: lifecycle",
		Description: "create, read, update, upload, delete and confirm removal of one pet",
		Tags:        []string{"pets"},
		Vars:        map[string]any{"newPetId": fx.PetID},
		Steps: []scenario.Step{
			{
				Name: "POST /pet adds a new pet",
				Request: scenario.Request{
					Method: http.MethodPost,
					Path:   "/pet",
					Body:   map[string]any{"id": "{{newPetId}}", "name": "Doggie", "status": "available"},
				},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.BodyField("id", "{{newPetId}}"),
					scenario.BodyField("name", "Doggie"),
					scenario.BodyField("status", "available"),
				},
				Capture: map[string]string{"petId": "id"},
			},
			{
				Name:    "GET /pet/{petId} returns the pet",
				Request: scenario.Request{Method: http.MethodGet, Path: "/pet/{{petId}}"},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.BodyField("id", "{{petId}}"),
					scenario.BodyField("name", "Doggie"),
				},
			},
			{
				Name: "PUT /pet updates the pet",
				Request: scenario.Request{
					Method: http.MethodPut,
					Path:   "/pet",
					Body:   map[string]any{"id": "{{petId}}", "name": "UpdatedDoggie", "status": "sold"},
				},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.BodyField("name", "UpdatedDoggie"),
					scenario.BodyField("status", "sold"),
				},
			},
			{
				Name:    "GET /pet/{petId} responds with JSON within the latency budget",
				Request: scenario.Request{Method: http.MethodGet, Path: "/pet/{{petId}}"},
				Expect:  readChecks(opts.LatencyBudget),
			},
			{
				Name:    "GET /pet/{petId} matches the pet schema",
				Request: scenario.Request{Method: http.MethodGet, Path: "/pet/{{petId}}"},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.MatchesSchema(PetSchema()),
					scenario.BodyField("name", "UpdatedDoggie"),
				},
			},
			{
				Name: "POST /pet/{petId}/uploadImage accepts an image",
				Request: scenario.Request{
					Method: http.MethodPost,
					Path:   "/pet/{{petId}}/uploadImage",
					Upload: &apiclient.Upload{
						FieldName: "file",
						FileName:  opts.UploadName,
						Content:   opts.UploadContent,
						Fields:    map[string]string{"additionalMetadata": "petcontract"},
					},
				},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.BodyHasField("message"),
					scenario.BodyField("code", 200),
					scenario.MatchesSchema(APIResponseSchema()),
				},
			},
			{
				Name: "POST /pet/{petId}/uploadImage rejects a JSON body",
				Request: scenario.Request{
					Method: http.MethodPost,
					Path:   "/pet/{{petId}}/uploadImage",
					Body:   map[string]any{"id": "{{petId}}", "additionalMetadata": "test"},
				},
				Expect: []scenario.Assertion{
					scenario.Status(http.StatusUnsupportedMediaType),
					scenario.BodyField("code", http.StatusUnsupportedMediaType),
				},
			},
			{
				Name:    "DELETE /pet/{petId} deletes the pet",
				Request: scenario.Request{Method: http.MethodDelete, Path: "/pet/{{petId}}"},
				Expect:  []scenario.Assertion{scenario.Status(200)},
			},
			{
				Name:    "GET /pet/{petId} is gone after delete",
				Request: scenario.Request{Method: http.MethodGet, Path: "/pet/{{petId}}"},
				Expect: []scenario.Assertion{
					scenario.Status(404),
					scenario.BodyField("message", "Pet not found"),
				},
			},
		},
	}
}

func petNotFound() *scenario.Scenario {
	return &scenario.Scenario{
		Name: "pets: unknown id",
		Tags: []string{"pets", "negative"},
		Steps: []scenario.Step{
			{
				Name:    "GET /pet/0 is not found",
				Request: scenario.Request{Method: http.MethodGet, Path: "/pet/0"},
				Expect: []scenario.Assertion{
					scenario.Status(404),
					scenario.StatusText("Not Found"),
					scenario.BodyField("message", "Pet not found"),
				},
			},
		},
	}
}

func petDeleteUnknown() *scenario.Scenario {
	return &scenario.Scenario{
		Name: "pets: delete unknown id",
		Tags: []string{"pets", "negative"},
		Steps: []scenario.Step{
			{
				Name:    "DELETE /pet/000 is not found",
				Request: scenario.Request{Method: http.MethodDelete, Path: "/pet/000"},
				Expect: []scenario.Assertion{
					scenario.Status(404),
					scenario.StatusText("Not Found"),
				},
			},
		},
	}
}
