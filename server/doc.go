// Package server exposes the dispatcher over HTTP.
//
// A query is addressed by its module path and qid:
//
//	GET /example/example?qid=random_data&rows=5&cols=1&output=json
//
// Without a qid the same path returns a JSON description of the module's
// queries, and / lists the modules. Failures are JSON ErrorResponse bodies
// whose status is chosen by StatusFor.
package server
