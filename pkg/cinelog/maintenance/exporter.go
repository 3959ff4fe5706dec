// Package maintenance writes knowledge-base dumps that parse.Facts and
// parse.Clauses can read back.
package maintenance

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cognicore/cinelog/pkg/cinelog/factstore"
	"github.com/cognicore/cinelog/pkg/cinelog/parse"
	"github.com/cognicore/cinelog/pkg/cinelog/rules"
)

// KBWriter persists a rendered knowledge base to a destination (file, DB, etc.).
type KBWriter interface {
	WriteKB(ctx context.Context, content string) error
}

// FileWriter writes the dump to Path, replacing it atomically.
type FileWriter struct {
	Path string
}

func (w FileWriter) WriteKB(ctx context.Context, content string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(w.Path), ".kb-*")
	if err != nil {
		return fmt.Errorf("write kb: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("write kb: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write kb: %w", err)
	}
	return os.Rename(tmp.Name(), w.Path)
}

// Exporter renders facts and rules in clause syntax.
type Exporter struct {
	Writer KBWriter
	// Predicates fixes the order of fact blocks. Predicates with facts that
	// are not listed follow in name order.
	Predicates []factstore.Key
}

// Export renders store and rs and hands the text to the writer.
func (e *Exporter) Export(ctx context.Context, store *factstore.Store, rs *rules.RuleSet) error {
	if e.Writer == nil {
		return fmt.Errorf("kb exporter: nil writer")
	}
	return e.Writer.WriteKB(ctx, Render(store, rs, e.Predicates))
}

// Render produces the dump text: one block per fact predicate, then the
// rule section.
func Render(store *factstore.Store, rs *rules.RuleSet, order []factstore.Key) string {
	var b strings.Builder

	for _, k := range predicateOrder(store, order) {
		facts := store.All(k.Name)
		label := strings.ToUpper(k.Name)
		if len(facts) == 0 {
			fmt.Fprintf(&b, "%% No %s FACTS found\n\n", label)
			continue
		}
		fmt.Fprintf(&b, "%% %s FACTS\n", label)
		for _, f := range facts {
			b.WriteString(f.String())
			b.WriteByte('\n')
		}
		b.WriteByte('\n')
	}

	b.WriteString(parse.RulesMarker)
	b.WriteByte('\n')
	if rs != nil {
		for _, r := range rs.Rules() {
			b.WriteString(r.String())
			b.WriteByte('\n')
		}
	}
	b.WriteString("% End of similarity rules\n")
	return b.String()
}

func predicateOrder(store *factstore.Store, order []factstore.Key) []factstore.Key {
	seen := make(map[factstore.Key]bool, len(order))
	out := make([]factstore.Key, 0, len(order))
	for _, k := range order {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for _, k := range store.Predicates() {
		if !seen[k] && store.Count(k.Name) > 0 {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}
