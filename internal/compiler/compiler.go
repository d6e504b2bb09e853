package compiler

import (
	"strings"

	"github.com/aretw0/codeflow/pkg/domain"
)

// Unit is the result of compiling one source text.
type Unit struct {
	Lines        []domain.SourceLine
	Outline      *Outline
	Algorithm    domain.AlgorithmLabel
	TrackedArray string
	Program      domain.Program
}

// Compile scans, classifies and instruments src.
// trackedArray may be empty, in which case it is inferred from the source.
func Compile(src, trackedArray string) (*Unit, error) {
	if strings.TrimSpace(src) == "" {
		return nil, domain.ErrEmptySource
	}
	outline, err := Scan(src)
	if err != nil {
		return nil, err
	}
	lines := ClassifyLines(src, outline)
	label := DetectAlgorithm(src)
	tracked := TrackedArrayName(src, trackedArray)

	text, err := Instrument(lines, outline, label, tracked)
	if err != nil {
		return nil, err
	}
	return &Unit{
		Lines:        lines,
		Outline:      outline,
		Algorithm:    label,
		TrackedArray: tracked,
		Program: domain.Program{
			Prelude:      Prelude,
			Source:       text,
			Original:     src,
			Lines:        len(lines),
			TrackedArray: tracked,
			Algorithm:    label,
		},
	}, nil
}
