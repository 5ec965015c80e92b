// Package protocol owns the object sync wire contract.
//
// Ownership boundary:
// - ObjectSyncMessage and sync type semantics shared by every peer
// - frame/tlv encoding of one message per datagram
// - schema validation on both encode and decode
package protocol
