package petstore

import (
	"net/http"

	"petcontract/internal/scenario"
)

// shipDateLayout is the millisecond RFC 3339 form clients send; servers may echo it as +0000.
const shipDateLayout = "2006-01-02T15:04:05.000Z07:00"

// StoreScenarios covers /store: inventory, order lifecycle and unknown orders.
func StoreScenarios(opts Options) []*scenario.Scenario {
	opts = opts.withDefaults()
	return []*scenario.Scenario{
		storeInventory(opts),
		orderLifecycle(opts),
		orderNotFound(),
	}
}

func storeInventory(opts Options) *scenario.Scenario {
	return &scenario.Scenario{
		Name: "store: inventory",
		Tags: []string{"store"},
		Steps: []scenario.Step{
			{
				Name:    "GET /store/inventory returns counts by status",
				Request: scenario.Request{Method: http.MethodGet, Path: "/store/inventory"},
				Expect: append(readChecks(opts.LatencyBudget),
					scenario.MatchesSchema(InventorySchema()),
				),
			},
		},
	}
}

func orderLifecycle(opts Options) *scenario.Scenario {
	fx := opts.NewFixtures()
	order := map[string]any{
		"id":       "{{newOrderId}}",
		"petId":    "{{orderPetId}}",
		"quantity": 1000,
		"shipDate": opts.Now().UTC().Format(shipDateLayout),
		"status":   "placed",
		"complete": true,
	}

	return &scenario.Scenario{
		Name:        "store: order lifecycle",
		Description: "place an order, read it back unchanged, delete it and confirm removal",
		Tags:        []string{"store"},
		Vars:        map[string]any{"newOrderId": fx.OrderID, "orderPetId": fx.PetID},
		Steps: []scenario.Step{
			{
				Name:    "POST /store/order places an order",
				Request: scenario.Request{Method: http.MethodPost, Path: "/store/order", Body: order},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.BodyField("status", "placed"),
					scenario.BodyEquals(order),
				},
				Capture: map[string]string{"orderId": "id"},
			},
			{
				Name:    "GET /store/order/{orderId} returns the submitted order",
				Request: scenario.Request{Method: http.MethodGet, Path: "/store/order/{{orderId}}"},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.BodyEquals(order),
				},
			},
			{
				Name:    "GET /store/order/{orderId} responds with JSON within the latency budget",
				Request: scenario.Request{Method: http.MethodGet, Path: "/store/order/{{orderId}}"},
				Expect:  readChecks(opts.LatencyBudget),
			},
			{
				Name:    "GET /store/order/{orderId} matches the order schema",
				Request: scenario.Request{Method: http.MethodGet, Path: "/store/order/{{orderId}}"},
				Expect: []scenario.Assertion{
					scenario.Status(200),
					scenario.MatchesSchema(OrderSchema()),
				},
			},
			{
				Name:    "DELETE /store/order/{orderId} deletes the order",
				Request: scenario.Request{Method: http.MethodDelete, Path: "/store/order/{{orderId}}"},
				Expect:  []scenario.Assertion{scenario.Status(200)},
			},
			{
				Name:    "GET /store/order/{orderId} is gone after delete",
				Request: scenario.Request{Method: http.MethodGet, Path: "/store/order/{{orderId}}"},
				Expect: []scenario.Assertion{
					scenario.Status(404),
					scenario.BodyField("message", "Order not found"),
				},
			},
		},
	}
}

func orderNotFound() *scenario.Scenario {
	return &scenario.Scenario{
		Name: "store: unknown order",
		Tags: []string{"store", "negative"},
		Steps: []scenario.Step{
			{
				Name:    "GET /store/order/0 is not found",
				Request: scenario.Request{Method: http.MethodGet, Path: "/store/order/0"},
				Expect: []scenario.Assertion{
					scenario.Status(404),
					scenario.StatusText("Not Found"),
					scenario.BodyField("message", "Order not found"),
				},
			},
		},
	}
}
