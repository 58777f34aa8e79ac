// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

// Extract converts downloaded PDFs to cached text.
func Extract() error {
	return cli("--extract-text", "--yes")
}
