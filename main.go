// Package main is the entry point for the documine document-processing
// service. It exposes an HTTP API for registering uploaded documents and
// observing their processing progress, and a background worker that runs the
// asynchronous processing pipeline (download, parse, chunk, embed, analyze).
package main

import "documine/cmd"

func main() {
	cmd.Execute()
}
