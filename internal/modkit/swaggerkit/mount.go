// Package swaggerkit mounts the swagger UI and the agent OpenAPI document
package swaggerkit

import (
	phttp "labelscan/internal/platform/net/http"
)

// DocURL is where the UI loads the document from
const DocURL = "/api/docs/doc.json"

// Mount the swagger UI and JSON document if enabled
// the document route is registered first so the UI wildcard does not shadow it
func Mount(r phttp.Router, enabled bool) {
	if !enabled {
		return
	}
	r.Get(DocURL, serveDocJSON())
	phttp.MountSwagger(r, "/api/docs", DocURL, true)
}
