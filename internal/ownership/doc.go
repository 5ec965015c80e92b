// Package ownership implements the per-object ownership protocol: claim by
// presence, release by absence, request and grant, and forced takeover.
//
// A Machine is single-writer. One goroutine applies inbound messages and
// local actions; cross-peer agreement is eventual. Two peers forcing the same
// object concurrently leave each receiver with whichever ForceSetOwner it saw
// last.
package ownership
