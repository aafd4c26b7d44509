// Package conflicts detects divergence between a synced lesson and its
// calendar event and applies the resolution a person picks for it.
//
// Detection is three-way: the link's stored snapshot is the last state both
// sides agreed on. Remote-only edits fast-forward the lesson; anything else
// that leaves the two sides different becomes a conflict record, and at most
// one record is outstanding per link.
package conflicts
