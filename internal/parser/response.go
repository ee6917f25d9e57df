// Package parser recovers instruction/context/output triples from free-form model replies.
package parser

import (
	"strings"

	"github.com/raphaelgruber/seedforge/internal/models"
	"github.com/raphaelgruber/seedforge/internal/prompt"
)

// Block is one marker-delimited section of a reply, before trimming and filtering.
type Block struct {
	Instruction string
	Context     string
	Output      string
}

type scanState int

const (
	seekInstruction scanState = iota
	inInstruction
	inContext
	inOutput
)

type marker int

const (
	markerNone marker = iota
	markerInstruction
	markerContext
	markerOutput
)

// classify reports which marker, if any, opens line and returns the text after it.
// Markers are only recognised at the start of a line; leading spaces and tabs are
// ignored. An instruction marker may follow a list enumerator such as "2." or "3)".
func classify(line string) (marker, string) {
	trimmed := strings.TrimLeft(line, " \t")
	switch {
	case strings.HasPrefix(trimmed, prompt.MarkerInstruction):
		return markerInstruction, trimmed[len(prompt.MarkerInstruction):]
	case strings.HasPrefix(trimmed, prompt.MarkerContext):
		return markerContext, trimmed[len(prompt.MarkerContext):]
	case strings.HasPrefix(trimmed, prompt.MarkerOutput):
		return markerOutput, trimmed[len(prompt.MarkerOutput):]
	}
	if rest, ok := cutEnumerator(trimmed); ok && strings.HasPrefix(rest, prompt.MarkerInstruction) {
		return markerInstruction, rest[len(prompt.MarkerInstruction):]
	}
	return markerNone, line
}

// cutEnumerator strips a leading "12." or "12)" and the blanks after it.
func cutEnumerator(s string) (string, bool) {
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	if i == 0 || i == len(s) || (s[i] != '.' && s[i] != ')') {
		return s, false
	}
	return strings.TrimLeft(s[i+1:], " \t"), true
}

// scanner walks a reply line by line. A block opens on an instruction marker and
// must continue with context then output markers in that order. A block only
// completes once its output section has started; it ends at the next instruction
// marker or at end of text. An out-of-order marker inside the output section cuts
// the output back to its last blank line, and drops the block if there is none.
type scanner struct {
	state       scanState
	instruction []string
	context     []string
	output      []string
	// lastBlank is the index in output of the most recent blank line, -1 if none.
	lastBlank int
	blocks    []Block
}

func (s *scanner) reset() {
	s.state = seekInstruction
	s.instruction = nil
	s.context = nil
	s.output = nil
	s.lastBlank = -1
}

func (s *scanner) start(rest string) {
	s.reset()
	s.state = inInstruction
	s.instruction = []string{rest}
}

func (s *scanner) emit() {
	s.blocks = append(s.blocks, Block{
		Instruction: strings.Join(s.instruction, "\n"),
		Context:     strings.Join(s.context, "\n"),
		Output:      strings.Join(s.output, "\n"),
	})
}

func (s *scanner) line(line string) {
	m, rest := classify(line)

	switch s.state {
	case seekInstruction:
		if m == markerInstruction {
			s.start(rest)
		}

	case inInstruction:
		switch m {
		case markerNone:
			s.instruction = append(s.instruction, line)
		case markerInstruction:
			s.start(rest)
		case markerContext:
			s.state = inContext
			s.context = []string{rest}
		case markerOutput:
			s.state = inOutput
			s.output = []string{rest}
		}

	case inContext:
		switch m {
		case markerNone:
			s.context = append(s.context, line)
		case markerInstruction:
			s.start(rest)
		case markerContext:
			s.reset()
		case markerOutput:
			s.state = inOutput
			s.output = []string{rest}
		}

	case inOutput:
		switch m {
		case markerNone:
			if strings.TrimSpace(line) == "" {
				s.lastBlank = len(s.output)
			}
			s.output = append(s.output, line)
		case markerInstruction:
			s.emit()
			s.start(rest)
		case markerContext, markerOutput:
			if s.lastBlank >= 0 {
				s.output = s.output[:s.lastBlank]
				s.emit()
			}
			s.reset()
		}
	}
}

func (s *scanner) finish() {
	if s.state == inOutput {
		s.emit()
	}
	s.reset()
}

// Scan splits raw into marker blocks without validating or filtering them. Blocks
// that never reached an output marker are not returned.
func Scan(raw string) []Block {
	s := &scanner{lastBlank: -1}
	for _, line := range strings.Split(raw, "\n") {
		s.line(strings.TrimSuffix(line, "\r"))
	}
	s.finish()
	return s.blocks
}

// Parse extracts the complete triples from raw. A block yields a record only when
// instruction, context and output are all non-empty after trimming. With filter set,
// records whose instruction or output contain a deny-listed phrase are dropped.
// The context section is returned in the record's Input field.
func Parse(raw string, filter bool) []models.Record {
	blocks := Scan(raw)
	records := make([]models.Record, 0, len(blocks))
	for _, b := range blocks {
		rec := models.Record{
			Instruction: b.Instruction,
			Input:       b.Context,
			Output:      b.Output,
		}.Trimmed()

		if !rec.Complete() {
			continue
		}
		if filter && Rejected(rec) {
			continue
		}
		records = append(records, rec)
	}
	return records
}
