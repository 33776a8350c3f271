package config

import "embed"

const gatewaySchemaFile = "schema/gateway.schema.json"

//go:embed schema/*.json
var configSchemaFS embed.FS

func gatewaySchema() []byte {
	data, err := configSchemaFS.ReadFile(gatewaySchemaFile)
	if err != nil {
		// The schema is compiled into the binary; failure here is a
		// build defect, not a runtime condition.
		panic(err)
	}
	return data
}
