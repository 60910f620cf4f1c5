// Package geocode turns GPS coordinates into human-readable place names
// using a Nominatim-compatible reverse-geocoding service.
//
// Requests pass through a process-wide [Gate] that enforces the service's
// usage policy (one request per second by default). Results are cached at a
// fixed coordinate precision, first in memory and then in a persistent
// [Store], so a library full of photos taken in the same place costs a
// single request. Failed lookups are never cached.
package geocode
