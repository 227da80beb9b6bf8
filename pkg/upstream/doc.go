// Package upstream holds the typed HTTP clients for the three external
// collaborators: the Matomo web-analytics API, the OJS content API, and the
// Serper citation-search API. Responses are parsed into explicit result
// structs at the boundary; shape mismatches surface as ErrMalformedResponse
// instead of leaking raw maps into business logic.
package upstream
