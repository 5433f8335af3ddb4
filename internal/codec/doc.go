// Package codec maps a plan.SharedState to a compact URL-safe token and back.
//
// # Token Format
//
// The token is base64url (unpadded) of a JSON payload. The current payload
// uses short keys to fit inside a link:
//
//	{"v":3,"t":1741608000000,
//	 "u1":{"n":"...","st":[{"i":"..","c":"..","co":false}],"lt":[...],
//	       "s":2,"su":1,"lsa":"...","lrm":"2025-03","ma":[...]},
//	 "u2":{...}}
//
// Plan creation times are not carried. Decoding stamps every item with the
// decode time.
//
// Tokens written by older builds carry the legacy payload
// {"user1":{...},"user2":{...},"version":n} with full field names. Both
// payloads are decodable indefinitely. Standard base64 with padding is also
// accepted.
//
// A token starting with "z." holds a zstd-compressed payload.
//
// # Size Budget
//
// A token longer than the budget (DefaultSizeBudget characters) is
// re-encoded with each user's short-term list cut to its first
// ShortTermLimit items and long-term list cut to its first LongTermLimit
// items. The earliest items are kept. If that is still too long, encoding
// fails with a PAYLOAD_TOO_LARGE error.
package codec
