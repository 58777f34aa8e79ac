// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

// Summarize writes summaries for library entries that have none.
func Summarize() error {
	return cli("--summarize", "--yes")
}
