package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// Worker exit statuses besides ExitQueryError. ExitIOError means the worker
// could not read its request or write its result.
const (
	ExitOK      = 0
	ExitIOError = 2
)

// ServeWorker is the body of a worker process. It reads one Request from in,
// runs it and writes the outcome to out: the encoded payload on success, a
// JSON QueryError otherwise. Diagnostics go to errOut. The return value is
// the process exit status.
//
// Panics are not recovered; the parent sees the non-zero exit as a crash.
func ServeWorker(ctx context.Context, runner *Runner, in io.Reader, out, errOut io.Writer) int {
	var req Request
	if err := json.NewDecoder(in).Decode(&req); err != nil {
		fmt.Fprintf(errOut, "datahub worker: reading request: %v\n", err)
		return ExitIOError
	}

	payload, err := runner.Execute(ctx, req)
	if err != nil {
		fmt.Fprintf(errOut, "datahub worker: %s: %v\n", requestName(req), err)
		if encErr := json.NewEncoder(out).Encode(newQueryError(req, err)); encErr != nil {
			fmt.Fprintf(errOut, "datahub worker: writing error: %v\n", encErr)
		}
		return ExitQueryError
	}

	if _, err := out.Write(payload); err != nil {
		fmt.Fprintf(errOut, "datahub worker: writing result: %v\n", err)
		return ExitIOError
	}
	return ExitOK
}
