// Package models defines the record types that flow through the augmentation pipeline.
package models

import "strings"

// Record is one (instruction, input, output) triple. Seeds and generated records share
// this shape; the JSON keys match the dataset files on disk.
type Record struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// Complete reports whether all three fields carry non-whitespace text.
func (r Record) Complete() bool {
	return strings.TrimSpace(r.Instruction) != "" &&
		strings.TrimSpace(r.Input) != "" &&
		strings.TrimSpace(r.Output) != ""
}

// Trimmed returns a copy with surrounding whitespace removed from every field.
func (r Record) Trimmed() Record {
	return Record{
		Instruction: strings.TrimSpace(r.Instruction),
		Input:       strings.TrimSpace(r.Input),
		Output:      strings.TrimSpace(r.Output),
	}
}
