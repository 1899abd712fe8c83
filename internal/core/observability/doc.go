// Package observability holds the Prometheus collectors shared by the
// HTTP layer, the metadata deriver, the style negotiator and the stores.
package observability
