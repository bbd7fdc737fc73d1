package sections

import (
	"strings"

	"tradecoach/internal/models"
)

// Parser is a single-pass line scanner over a narrative. Text seen before the
// first header is buffered but dropped at the first transition because no
// section is open yet.
type Parser struct {
	current  models.SectionKey
	open     bool
	buffer   strings.Builder
	sections models.SectionMap
}

// Parse splits a narrative into sections.
func Parse(text string) models.SectionMap {
	var p Parser
	for _, line := range strings.Split(text, "\n") {
		p.Feed(strings.TrimSuffix(line, "\r"))
	}
	return p.Close()
}

// Feed consumes one line.
func (p *Parser) Feed(line string) {
	key, ok := MatchHeader(line)
	if !ok {
		p.buffer.WriteString(line)
		p.buffer.WriteString("\n")
		return
	}
	p.commit()
	p.current = key
	p.open = true
	p.buffer.Reset()
}

// Close flushes the open section and returns the parsed sections.
func (p *Parser) Close() models.SectionMap {
	p.commit()
	p.open = false
	p.buffer.Reset()
	return p.sections
}

func (p *Parser) commit() {
	if !p.open {
		return
	}
	if p.current == models.SectionTraderScore {
		p.sections.TraderScore = ExtractScores(p.buffer.String())
		return
	}
	p.sections.Set(p.current, strings.TrimSpace(p.buffer.String()))
}
