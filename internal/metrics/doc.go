// Package metrics provides build observability for blogbuilder.
//
// Components receive a Recorder through their options and default to
// NoopRecorder, so metrics never need nil checks at call sites:
//
//	idx := content.NewIndexer(root, content.WithRecorder(recorder))
//
// PrometheusRecorder registers its collectors on a caller-supplied registry.
// The registry can be served over HTTP (HTTPHandler, used by the preview
// server) or dumped to a node_exporter textfile after a one-shot build
// (WriteTextfile).
package metrics
