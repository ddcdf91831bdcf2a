// Package arweave is a small client for the Arweave HTTP API: pricing,
// format-2 transaction construction and signing, chunked data upload and
// wallet queries.
package arweave

import (
	"net"
	"strconv"
)

// Endpoint locates an Arweave gateway or node.
type Endpoint struct {
	Protocol string
	Host     string
	Port     int
}

// BaseURL renders the endpoint as scheme://host[:port]. Default ports for
// the scheme are omitted.
func (e Endpoint) BaseURL() string {
	proto := e.Protocol
	if proto == "" {
		proto = "https"
	}

	host := e.Host
	if e.Port != 0 && !isDefaultPort(proto, e.Port) {
		host = net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
	}
	return proto + "://" + host
}

// PermanentURL is the retrieval address of transaction id on this endpoint.
func (e Endpoint) PermanentURL(id string) string {
	return e.BaseURL() + "/" + id
}

func isDefaultPort(proto string, port int) bool {
	return (proto == "https" && port == 443) || (proto == "http" && port == 80)
}
