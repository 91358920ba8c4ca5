package arvos

import (
	"fmt"
)

// block is an open IFDEF or IFNDEF.
type block struct {
	kind directiveKind
	tag  string

	// skipping is true when the body isn't being output, either because
	// the condition failed or because an enclosing block is skipping.
	skipping bool
}

// blockStack tracks the open conditional blocks of one file or one pass
// through a loop body. Blocks nested inside a skipped block are pushed
// without being evaluated, so their ENDIF can't end the outer skip early.
type blockStack []block

func (s blockStack) skipping() bool {
	return len(s) > 0 && s[len(s)-1].skipping
}

func (s *blockStack) open(kind directiveKind, tag string, values *Values, iteration int) {
	if s.skipping() {
		*s = append(*s, block{kind: kind, tag: tag, skipping: true})
		return
	}
	defined := values.Defined(tag, iteration)
	skip := defined
	if kind == directiveIfdef {
		skip = !defined
	}
	*s = append(*s, block{kind: kind, tag: tag, skipping: skip})
}

// close ends the innermost block. An ENDIF with no open block is ignored.
func (s *blockStack) close(tag string) error {
	if len(*s) < 1 {
		return nil
	}
	top := (*s)[len(*s)-1]
	if top.tag != tag {
		return fmt.Errorf("%w: ENDIF %q inside %s %q", ErrMismatchedBlock, tag, top.kind, top.tag)
	}
	*s = (*s)[:len(*s)-1]
	return nil
}

func (s blockStack) finish() error {
	if len(s) < 1 {
		return nil
	}
	top := s[len(s)-1]
	return fmt.Errorf("%w: %s %q has no ENDIF", ErrUnterminatedBlock, top.kind, top.tag)
}
