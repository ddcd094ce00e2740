package petstore

import "petcontract/internal/schema"

func idName() *schema.Schema {
	return schema.Object(
		schema.Required("id", schema.Integer()),
		schema.Required("name", schema.String()),
	)
}

// PetSchema is the contract of GET /pet/{petId}.
func PetSchema() *schema.Schema {
	return schema.Object(
		schema.Required("id", schema.Integer()),
		schema.Optional("category", idName()),
		schema.Required("name", schema.String()),
		schema.Optional("photoUrls", schema.ArrayOf(schema.String())),
		schema.Required("status", schema.String()),
		schema.Optional("tags", schema.ArrayOf(idName())),
	).Named("pet")
}

// OrderSchema is the contract of GET /store/order/{orderId}.
func OrderSchema() *schema.Schema {
	return schema.Object(
		schema.Required("id", schema.Integer()),
		schema.Required("petId", schema.Integer()),
		schema.Optional("quantity", schema.Integer()),
		schema.Optional("shipDate", schema.String()),
		schema.Required("status", schema.String()),
		schema.Optional("complete", schema.Boolean()),
	).Named("order")
}

// UserSchema is the contract of GET /user/{username}.
func UserSchema() *schema.Schema {
	return schema.Object(
		schema.Required("id", schema.Integer()),
		schema.Required("username", schema.String()),
		schema.Optional("firstName", schema.String()),
		schema.Optional("lastName", schema.String()),
		schema.Optional("email", schema.String()),
		schema.Optional("password", schema.String()),
		schema.Optional("phone", schema.String()),
		schema.Required("userStatus", schema.Integer()),
	).Named("user")
}

// APIResponseSchema is the generic {code, type, message} envelope.
func APIResponseSchema() *schema.Schema {
	return schema.Object(
		schema.Required("code", schema.Integer()),
		schema.Optional("type", schema.String()),
		schema.Required("message", schema.String()),
	).Named("apiResponse")
}

// InventorySchema maps each status to a count.
func InventorySchema() *schema.Schema {
	return schema.MapOf(schema.Integer()).Named("inventory")
}

// Schemas returns a registry holding every pet store schema, for YAML suites.
func Schemas() *schema.Registry {
	return schema.NewRegistry(
		PetSchema(),
		OrderSchema(),
		UserSchema(),
		APIResponseSchema(),
		InventorySchema(),
	)
}
