// Command collabimport checks, and optionally submits, a collaborator
// spreadsheet from the command line.
package main

func main() {
	Execute()
}
