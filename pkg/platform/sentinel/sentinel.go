// Package sentinel holds storage-level error facts. Stores wrap these so
// callers can test with errors.Is without depending on a driver.
package sentinel

import "errors"

// ErrConflict reports an insert that would replace an existing row. Records
// are append-only, so a conflict is never retried as an update.
var ErrConflict = errors.New("conflict")
