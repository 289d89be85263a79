// Package wire defines the JSON contract with the translation server and the
// one place where its varying response shapes are normalized.
//
// Responses may arrive flat or wrapped one level deep under an envelope key.
// Unwrap peels exactly one envelope, checking EnvelopeKeys in order. Field
// name variants are resolved through the alias lists below, always in the
// same priority order:
//
//	accepted: items (list length), sources, accepted
//	missing:  missing, rejected
//	item key: key, hash
//
// A payload that is not a JSON object is ErrMalformedResponse regardless of
// the HTTP status it came with. PHP servers encode an empty map as [], so an
// empty JSON array is read as an empty object.
package wire
