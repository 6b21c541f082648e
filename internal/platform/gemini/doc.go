// Package gemini implements the agent interfaces using Google's Gemini
// API via the google.golang.org/genai client. It performs the structured
// scholarship extraction behind the annotate task and the boolean
// eligibility decision behind the filter task.
package gemini
