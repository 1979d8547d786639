// Package signature turns a panic value and its stack into the title and
// description text used for issue deduplication. The title is the dedup key:
// it depends only on the value's type and message, never on the stack or the
// time of the occurrence. The description carries the stack and a timestamp
// and is regenerated on every occurrence.
package signature

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Footer is the fixed provenance line appended to every description.
const Footer = "(*This issue was automatically opened by glreporter*)"

// tsLayout is a fixed-width ISO-8601 layout so that descriptions generated
// later always compare greater as strings (within one UTC offset).
const tsLayout = "2006-01-02T15:04:05.000000-07:00"

// now is swapped in tests.
var now = time.Now

// TypeName returns a stable name for the dynamic type of a panic value.
// Pointer types are dereferenced so wrapped and unwrapped errors of the same
// underlying type share a name. A nil value reports as "panic".
func TypeName(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return "panic"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.String()
}

// Message returns the human-readable message for a panic value.
func Message(v any) string {
	if err, ok := v.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(v)
}

// Title builds the issue title for a panic value. Two values with the same
// type and message always produce the same title.
func Title(v any) string {
	return TypeName(v) + ": " + Message(v)
}

// Description builds the issue body: a header embedding the title, a fenced
// stack block, the last-occurrence timestamp, and the provenance footer.
// A nil stack produces an empty fenced block.
func Description(v any, st *Stack) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Uncaught panic '%s'\n\n", Title(v))
	b.WriteString("```\n")
	if trace := st.String(); trace != "" {
		b.WriteString(trace)
		if !strings.HasSuffix(trace, "\n") {
			b.WriteString("\n")
		}
	}
	b.WriteString("```\n")
	fmt.Fprintf(&b, "The error lastly occurred at: **%s**\n", now().Format(tsLayout))
	b.WriteString("\n\n\n" + Footer)
	return b.String()
}
