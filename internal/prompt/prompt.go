// Package prompt renders seed records into generation prompts.
package prompt

import (
	"fmt"

	"github.com/raphaelgruber/seedforge/internal/models"
)

// System is the system prompt sent with every generation request.
const System = "You are a helpful assistant."

// Block markers the model is asked to emit, one triple per block.
const (
	MarkerInstruction = "I:"
	MarkerContext     = "i:"
	MarkerOutput      = "O:"
)

const template = `%s. Per set of instructions, inputs, and output pairs there can only be 1 instruction, 1 input, and 1 output. ` +
	`Instruction will always be questions or statements that command an answer, Input will always provide context based on the input or output and context below, ` +
	`and output will always provide the full detailed answer. Based on the text below, generate %d more variations based on the original content of ` +
	`"Instruction" "Context" and "Output" in the format '%s' for instruction (always a questions or a command to do something), ` +
	`'%s' for context (which should be long and detailed and always provide context for input and output), ` +
	`and '%s' for output (which will provide the full detailed answer).

Instruction: %s
Context: %s
Output: %s`

// Build renders the user prompt for one seed. Inputs are interpolated verbatim.
func Build(seed models.Record, numVariations int, directive string) string {
	return fmt.Sprintf(template,
		directive,
		numVariations,
		MarkerInstruction, MarkerContext, MarkerOutput,
		seed.Instruction, seed.Input, seed.Output,
	)
}
