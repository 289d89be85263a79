// Package keys derives the content-addressed identities shared by the local
// store and the remote translation server.
//
// Both sides compute keys independently, so every function here is pure:
// identical inputs produce bit-identical output in any process.
//
// A source key is the first 18 hex characters of md5(text) with characters
// [3:5] replaced by the upper-cased two-letter locale code:
//
//	SourceKey("Save", "en") == "c9cENcce247e49bae7"
//
// Hex output is lower-case, so the spliced upper-case letters can never be
// produced by the hash itself. Two locales therefore never share a key for
// the same text.
package keys
