// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

// Catalog exports the library to SQLite and prints its statistics.
func Catalog() error {
	return cli("--export-catalog", "--stats", "--yes")
}
