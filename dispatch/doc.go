// Package dispatch runs registered queries on behalf of a caller.
//
// A Dispatcher validates the call, resolves fast-cache requests without
// running anything, and otherwise hands a Request to an Isolator. Subprocess
// starts one disposable "datahub worker" per call, which reads the request on
// stdin and answers through ServeWorker; InProcess runs the same Runner on a
// goroutine for development and tests. The encoded result is rendered with
// the output package.
package dispatch
