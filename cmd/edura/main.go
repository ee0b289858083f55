// Edura serves the tutoring chat backend: it relays chat completions from the
// configured LLM provider to the browser as an event stream and keeps the
// per-student session prompts.
//
// Usage:
//
//	# Start the server (default command)
//	edura serve --config config.yaml
//
//	# Print the lesson prompt, optionally rendered
//	edura prompt --context "Nouns name things." --question "What is a noun?"
package main

import (
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	Execute()
}
