// Package download implements the package transfer pipeline: a streaming
// HTTP downloader that verifies vendor checksums on the fly, and a
// coordinator that runs many downloads over a bounded worker pool while
// publishing task state to observers.
package download
