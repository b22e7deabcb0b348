// Package cache memoizes query results on disk.
//
// Entries live at <root>/<module stem>/<query>?<sorted params>.cbor.gz (with
// spaces, '&' and '?' turned into '_'). A lag Policy keeps calls whose date
// window is too recent out of the cache, and the Memoizer degrades to live
// execution whenever the cache itself fails.
package cache
