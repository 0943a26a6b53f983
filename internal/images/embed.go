package images

import (
	"fmt"
	"path/filepath"
	"strings"
)

// marker is the placeholder a rewrite model may leave in the body where
// an image should go.
const marker = "[IMAGE]"

// Embed weaves downloaded images into a markdown body. Bodies carrying
// [IMAGE] markers get them filled in order; otherwise image references
// are spread across the paragraphs. At most MaxImages images are used.
func (p *Processor) Embed(body string, stored []Stored) string {
	if len(stored) == 0 {
		return body
	}
	if len(stored) > p.cfg.MaxImages {
		stored = stored[:p.cfg.MaxImages]
	}
	if strings.Contains(body, marker) {
		return p.fillMarkers(body, stored)
	}
	return p.spread(body, stored)
}

func (p *Processor) fillMarkers(body string, stored []Stored) string {
	for i := range stored {
		if !strings.Contains(body, marker) {
			break
		}
		body = strings.Replace(body, marker, p.reference(stored[i], i), 1)
	}
	// Markers beyond the available images must not leak into published
	// content.
	return strings.ReplaceAll(body, marker, "")
}

func (p *Processor) spread(body string, stored []Stored) string {
	paras := strings.Split(body, "\n\n")
	positions := insertPositions(len(paras), len(stored))

	out := make([]string, 0, len(paras)+len(stored))
	next := 0
	for i, para := range paras {
		out = append(out, para)
		for next < len(stored) && positions[next] == i {
			out = append(out, p.reference(stored[next], next))
			next++
		}
	}
	for ; next < len(stored); next++ {
		out = append(out, p.reference(stored[next], next))
	}
	return strings.Join(out, "\n\n")
}

// insertPositions picks the paragraph index each image follows. A single
// image lands a third of the way in, two land at thirds, more are spread
// evenly past the opening paragraph. Positions are nondecreasing.
func insertPositions(paragraphs, count int) []int {
	pos := make([]int, count)
	if paragraphs <= 1 {
		for i := range pos {
			pos[i] = paragraphs
		}
		return pos
	}
	switch count {
	case 1:
		pos[0] = max(1, paragraphs/3)
	case 2:
		pos[0] = max(1, paragraphs/3)
		pos[1] = max(2, 2*paragraphs/3)
	default:
		step := max(1, (paragraphs-1)/(count+1))
		for i := range pos {
			pos[i] = min(paragraphs-1, 1+i*step)
		}
	}
	return pos
}

func (p *Processor) reference(s Stored, index int) string {
	caption := s.Alt
	if caption == "" {
		caption = fmt.Sprintf("Image %d", index+1)
	}
	target := s.URL
	if target == "" {
		target = localRef(p.cfg.Dir, s.Path)
	}
	return fmt.Sprintf("![%s](%s %q)", caption, target, caption)
}

// localRef renders a stored path relative to the parent of the image
// directory, so references survive moving the output tree around.
func localRef(dir, stored string) string {
	rel, err := filepath.Rel(filepath.Dir(dir), stored)
	if err != nil {
		return filepath.ToSlash(stored)
	}
	return filepath.ToSlash(rel)
}
