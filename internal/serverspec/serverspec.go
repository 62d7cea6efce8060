// Package serverspec parses the "url::type" server spec notation used
// throughout the CLI, the Registry Service's add-server tool, and the
// optional servers file, into a dialable mcptransport.Descriptor.
package serverspec

import (
	"fmt"
	"strings"

	"github.com/fenwick-labs/toolgate/internal/mcptransport"
)

// Parse splits spec ("url::type") and builds the Descriptor mcptransport.Dial
// needs. For stdio, url is interpreted as a whitespace-separated command
// line; authToken is ignored for stdio and added as a Bearer header for
// sse/ws.
func Parse(spec, authToken string) (mcptransport.Descriptor, error) {
	url, kind, ok := Split(spec)
	if !ok {
		return mcptransport.Descriptor{}, fmt.Errorf("serverspec: malformed spec %q, expected url::type", spec)
	}

	d := mcptransport.Descriptor{Transport: mcptransport.Kind(kind)}
	switch d.Transport {
	case mcptransport.KindStdio:
		parts := strings.Fields(url)
		if len(parts) == 0 {
			return mcptransport.Descriptor{}, fmt.Errorf("serverspec: empty stdio command in %q", spec)
		}
		d.Command, d.Args = parts[0], parts[1:]
	case mcptransport.KindSSE, mcptransport.KindWS:
		d.URL = url
		if authToken != "" {
			d.Headers = map[string]string{"Authorization": "Bearer " + authToken}
		}
	default:
		return mcptransport.Descriptor{}, fmt.Errorf("serverspec: unsupported transport %q in %q", kind, spec)
	}
	return d, nil
}

// Split breaks spec into its URL/command half and its transport-kind half.
func Split(spec string) (url, kind string, ok bool) {
	idx := strings.LastIndex(spec, "::")
	if idx < 0 {
		return "", "", false
	}
	return spec[:idx], spec[idx+2:], true
}
