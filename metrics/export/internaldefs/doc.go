// Package internaldefs is the shared naming table of the Prometheus and OTel
// exporters, so both publish identical series.
package internaldefs
