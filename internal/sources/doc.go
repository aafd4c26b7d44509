// Package sources holds what the external source adapters share: Google
// client authentication. The adapters themselves live in sub-packages and
// translate provider payloads into matching types.
package sources
