// Package query retrieves update documents from the vendor update service.
//
// A Client performs exactly one bounded GET per call and classifies the
// outcome into network failures, non-success statuses and empty or non-XML
// bodies. It never retries and never caches; both are caller decisions.
package query
