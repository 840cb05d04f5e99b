// Package swagger embeds the OpenAPI document of the HTTP API.
package swagger

import _ "embed"

// FileName is the document's name under the /swagger/ route
const FileName = "users.swagger.json"

//go:embed users.swagger.json
var Doc []byte
