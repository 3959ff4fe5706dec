package parse

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	p "github.com/ijt/goparsify"

	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/internalerr"
	"github.com/cognicore/cinelog/pkg/cinelog/term"
)

// RulesMarker starts the rule section of a knowledge-base dump.
const RulesMarker = "% SIMILARITY RULES"

// Fact parses a single ground fact such as genre('avatar','action').
func Fact(line string) (factstore.Fact, error) {
	res, err := p.Run(factRoot, line)
	if err != nil {
		return factstore.Fact{}, fmt.Errorf("%w: parse fact: %v", internalerr.ErrInvalidInput, err)
	}
	h := res.(head)
	if !term.IsGround(h.args...) {
		return factstore.Fact{}, fmt.Errorf("%w: fact %s/%d is not ground", internalerr.ErrInvalidInput, h.name, len(h.args))
	}
	return factstore.Fact{Predicate: h.name, Args: h.args}, nil
}

// Facts reads a knowledge-base dump: one fact per line, "%" comment lines
// and blank lines ignored. Reading stops at RulesMarker.
func Facts(r io.Reader) ([]factstore.Fact, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNum := 0

	var out []factstore.Fact
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		if strings.HasPrefix(line, RulesMarker) {
			break
		}
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}

		f, err := Fact(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}
		out = append(out, f)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read facts: %w", err)
	}
	return out, nil
}

// Clauses reads the rule section of a dump, starting after RulesMarker and
// ending at the "% End" line, one clause per line.
func Clauses(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	var out []string
	inRules := false
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !inRules {
			inRules = strings.HasPrefix(line, RulesMarker)
			continue
		}
		if strings.HasPrefix(line, "% End") {
			break
		}
		if line == "" || strings.HasPrefix(line, "%") {
			continue
		}
		out = append(out, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read clauses: %w", err)
	}
	return out, nil
}
