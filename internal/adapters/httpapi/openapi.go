package httpapi

func openapiSpec() map[string]any {
	op := func(summary string) map[string]any { return map[string]any{"summary": summary} }
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "gmpledger",
			"version": "1.0.0",
		},
		"components": map[string]any{
			"securitySchemes": map[string]any{
				"apiKey": map[string]any{"type": "apiKey", "in": "header", "name": "X-API-Key"},
			},
		},
		"security": []map[string]any{{"apiKey": []string{}}},
		"paths": map[string]any{
			"/healthz":       map[string]any{"get": op("Liveness check")},
			"/metrics":       map[string]any{"get": op("Prometheus metrics")},
			"/v1/kinds":      map[string]any{"get": op("List entity kinds and their fields")},
			"/v1/reasons":    map[string]any{"get": op("List signature reason codes")},
			"/v1/audit":      map[string]any{"get": op("Query the audit trail")},
			"/v1/signatures": map[string]any{"post": op("Sign a record version")},
			"/v1/entities/{kind}": map[string]any{
				"get":  op("List entities"),
				"post": op("Create entity"),
			},
			"/v1/entities/{kind}/{id}": map[string]any{
				"get":    op("Get entity"),
				"put":    op("Replace entity"),
				"delete": op("Delete entity"),
			},
			"/v1/entities/{kind}/{id}/history":    map[string]any{"get": op("Entity audit history")},
			"/v1/entities/{kind}/{id}/restore":    map[string]any{"post": op("Restore an earlier version")},
			"/v1/entities/{kind}/{id}/signatures": map[string]any{"get": op("List signatures of an entity")},
			"/v1/schemas/{kind}": map[string]any{
				"get":    op("Get the effective JSON schema"),
				"put":    op("Set a schema override"),
				"delete": op("Remove the schema override"),
			},
			"/v1/diagnostics/slow-operations": map[string]any{"get": op("Recent slow operations")},
		},
	}
}
