// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

// Download fetches missing PDFs for every library entry.
func Download() error {
	return cli("--download-only", "--yes")
}
