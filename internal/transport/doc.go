// Package transport builds the HTTP clients used to talk to the vendor
// update service and its package hosts.
//
// Clients are plain *http.Client values constructed from Options and handed
// to the query and download packages explicitly, so tests can substitute
// httptest servers without any global state.
//
// # Usage
//
//	client := transport.New(transport.Options{
//	    Timeout:            20 * time.Second,
//	    InsecureSkipVerify: true,
//	})
package transport
