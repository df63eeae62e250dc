// Package models holds the auction domain types shared by storage, the
// bidding service and the HTTP layer.
//
// Money is decimal.Decimal. Importing this package sets
// decimal.MarshalJSONWithoutQuotes, so every amount in this process is
// encoded as a JSON number (110.5) rather than a quoted string ("110.5").
// Decoding accepts both forms. Every package that serializes amounts
// imports models, so the setting holds in the server and in tests alike.
package models
