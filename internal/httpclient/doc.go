// Package httpclient builds the *http.Client used for link checks.
//
// Connections go out directly unless a SOCKS5 proxy is configured, in which
// case every dial is routed through it with golang.org/x/net/proxy.
package httpclient
