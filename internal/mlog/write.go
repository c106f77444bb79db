package mlog

import (
	"io"
	"strings"

	"github.com/dogmatiq/iago/must"
)

// String renders a log line made of labelled IDs, then icons, then the
// non-empty elements of text separated by SeparatorIcon.
func String(ids []IconWithLabel, icons []Icon, text ...string) string {
	var b strings.Builder
	writeLine(&b, ids, icons, text)
	return b.String()
}

// Write renders the same log line as String() to w.
func Write(w io.Writer, ids []IconWithLabel, icons []Icon, text ...string) (n int, err error) {
	defer must.Recover(&err)
	return writeLine(w, ids, icons, text), nil
}

// writeLine panics via iago/must if w fails.
func writeLine(w io.Writer, ids []IconWithLabel, icons []Icon, text []string) (n int) {
	for _, id := range ids {
		n += must.WriteTo(w, id)
		n += must.WriteString(w, "  ")
	}

	for _, ic := range icons {
		n += must.WriteTo(w, ic)
		n += must.Write(w, space1)
	}

	sep := ""
	for _, t := range text {
		if t == "" {
			continue
		}

		n += must.WriteString(w, " "+sep+t)
		sep = string(SeparatorIcon) + " "
	}

	return n
}

var space1 = []byte{' '}
