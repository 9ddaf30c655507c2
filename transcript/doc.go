// Package transcript parses timestamped call transcripts into speaker turns
// and groups those turns into token-bounded chunks for retrieval.
//
// Input lines look like:
//
//	[00:02] AE (Jordan): Thanks for joining today.
//	[00:03] Prospect: Happy to be here.
//	- continuation lines attach to the previous turn
//
// Chunk content keeps the "[HH:MM] Speaker: text" markers of every turn it
// contains, so concatenating a call's chunks in sequence order reproduces the
// transcript's turn order.
package transcript
