// Package internaldefs holds the counter families, label values and
// histogram bounds shared by the Prometheus and OTel exporters, so both
// publish identical series.
package internaldefs
