// Package swrcache is a client-side result cache for paginated list views.
// Entries carry their own freshness window; a stale entry may still be served
// while a background refresh replaces it (stale-while-revalidate).
//
// Components:
//   - Key / BuildKey: canonical key for a resource plus a flat parameter set.
//   - Store[V]: key -> Entry[V] with lazy expiry. Entries are framed on top of a
//     byte Provider (in-process map, Ristretto, BigCache or Redis) via a Codec[V].
//   - GenStore: per-key generation used to drop writes that raced an Invalidate.
//
// The debounce, prefetch and query packages build the list pipeline on top:
//
//	inputs (debounced) -> BuildKey -> Store.Get -> fresh | stale+refresh | fetch
//	                                          \-> prefetch next page after a quiet delay
//
// Keys:
//
//	entry:<ns>:<key>  - stored entries
package swrcache
