// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

//go:build mage

package main

// Search runs the full pipeline non-interactively for a comma-separated
// keyword list, e.g. mage search "active inference, free energy".
func Search(keywords string) error {
	return cli("--search", "--yes", "--keywords", keywords)
}

// Resume continues the saved summarization run.
func Resume() error {
	return cli("--search", "--resume", "--yes")
}
