//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Pipeline groups targets that drive the CLI over a records file.
type Pipeline mg.Namespace

// Run builds the CLI and processes every record in the given file.
func (Pipeline) Run(records string) error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath(), "run", records)
}

// Acquire downloads the PDFs for the given records file into papers/.
func (Pipeline) Acquire(records string) error {
	mg.Deps(Build, Init)
	return sh.RunV(binPath(), "acquire", records)
}

// Match prints the context windows of already acquired papers.
func (Pipeline) Match(records string) error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "match", records)
}

// Report summarizes the stored results of the last run.
func (Pipeline) Report() error {
	mg.Deps(Build)
	return sh.RunV(binPath(), "report")
}
