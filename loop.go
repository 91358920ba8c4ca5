package arvos

// loop buffers the body of a FOR block until its ENDFOR is found. Directives
// inside the body are kept verbatim; they're interpreted when the body is
// replayed for each iteration.
type loop struct {
	tag  string
	body []string

	// depth counts FOR blocks with the same tag nested inside this one,
	// so their ENDFOR doesn't end the outer block.
	depth int
}

// feed adds line to the body. When the line holds the block's ENDFOR, the
// text before the marker is added, and the text after it is returned with
// done set.
func (l *loop) feed(line string) (rest string, done bool) {
	pos := 0
	for {
		d, ok := nextDirective(line[pos:])
		if !ok || !d.terminated {
			break
		}
		if d.tag == l.tag {
			switch d.kind {
			case directiveFor:
				l.depth++
			case directiveEndfor:
				if l.depth > 0 {
					l.depth--
					break
				}
				if prefix := line[:pos+d.start]; prefix != "" {
					l.body = append(l.body, prefix)
				}
				return line[pos+d.end:], true
			}
		}
		pos += d.end
	}
	l.body = append(l.body, line)
	return "", false
}

// iterates reports whether iteration i of the loop has data. Only the
// iteration variant counts; a bare key of the same name would never end.
func (l *loop) iterates(values *Values, i int) bool {
	val, _ := values.GetIteration(l.tag, i)
	return val != ""
}
