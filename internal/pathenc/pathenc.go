// Package pathenc implements the deterministic on-disk placement scheme
// (component A): given a type tag and a signature, it produces the fan-out
// path a document is stored under, total over its inputs.
package pathenc

import (
	"net/url"
	"path"
)

// fanoutDepth is the number of leading signature characters used as
// directory components.
const fanoutDepth = 4

// Encode returns the relative path for a document of the given type tag
// and signature. uniqueIndex is the name of the unique index the signature
// came from, or "" if the signature is a random fallback id.
//
// <enc(type)>/<c1>/<c2>/<c3>/<c4>/<enc(type)>[-<unique-index-name>]-<enc(sig)>.json
func Encode(typeTag, signature, uniqueIndex string) string {
	encType := escape(typeTag)
	encSig := escape(signature)

	parts := make([]string, 0, fanoutDepth+2)
	parts = append(parts, encType)
	parts = append(parts, fanout(encSig)...)

	name := encType
	if uniqueIndex != "" {
		name += "-" + uniqueIndex
	}
	name += "-" + encSig + ".json"
	parts = append(parts, name)

	return path.Join(parts...)
}

// fanout returns the first up-to-fanoutDepth characters of s, one directory
// component per character. Fewer than fanoutDepth characters yields a
// shorter chain, never an error.
func fanout(s string) []string {
	n := len(s)
	if n > fanoutDepth {
		n = fanoutDepth
	}
	out := make([]string, n)
	for i := 0; i < n; i++ {
		out[i] = string(s[i])
	}
	return out
}

// escape percent-encodes a single path segment, reserving the same
// characters a URL path segment would (/, ?, #, and friends), matching the
// contract in §4.A.
func escape(s string) string {
	return url.PathEscape(s)
}
