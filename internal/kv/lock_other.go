//go:build !unix

package kv

import "os"

// Without flock the store is only safe within a single process.
func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
