// Package updates ties the lookup pipeline together: a raw title id is
// validated, the vendor document fetched and parsed, and PS4 part
// manifests expanded into downloadable entries. It also selects entries
// and plans the download tasks for them.
package updates
