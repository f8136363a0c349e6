package wire

// DefaultMaxLineLen is the line limit when Parser.MaxLineLen is not set.
const DefaultMaxLineLen = 4096

// Parser splits a byte stream into lines. It is fed one byte at a time so
// it can't be confused by how reads are chunked.
type Parser struct {
	MaxLineLen int

	buf        []byte
	discarding bool
}

// Parse consumes one byte. It returns a complete line when b terminates a
// non-empty line, or ErrLineTooLong once when the current line exceeds the
// limit. The rest of an overlong line is discarded up to the newline.
func (p *Parser) Parse(b byte) ([]byte, error) {
	switch b {
	case '\n':
		if p.discarding {
			p.discarding = false
			return nil, nil
		}
		if len(p.buf) == 0 {
			return nil, nil
		}
		line := make([]byte, len(p.buf))
		copy(line, p.buf)
		p.buf = p.buf[:0]
		return line, nil
	case '\r':
		return nil, nil
	}
	if p.discarding {
		return nil, nil
	}
	if len(p.buf) >= p.maxLineLen() {
		p.buf, p.discarding = p.buf[:0], true
		return nil, ErrLineTooLong
	}
	p.buf = append(p.buf, b)
	return nil, nil
}

// Reset drops the partial line.
func (p *Parser) Reset() {
	p.buf, p.discarding = p.buf[:0], false
}

// Pending returns the number of buffered bytes of the partial line.
func (p *Parser) Pending() int {
	return len(p.buf)
}

func (p *Parser) maxLineLen() int {
	if p.MaxLineLen > 0 {
		return p.MaxLineLen
	}
	return DefaultMaxLineLen
}
