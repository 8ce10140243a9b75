package xmlscript

import "bytes"

// locator recovers approximate source locations for etree elements.
// Neither beevik/etree nor encoding/xml track line/column positions, so
// this does a left-to-right byte scan for each element's start tag in
// document order, which always matches the order nodes are constructed
// during the recursive descent over the parsed document.
type locator struct {
	data   []byte
	cursor int
}

func newLocator(data []byte) *locator {
	return &locator{data: data}
}

// locate finds the next "<tag" occurrence at or after the cursor and
// returns its line/column/offset, advancing the cursor past it.
func (lc *locator) locate(tag string) Location {
	needle := append([]byte("<"), tag...)
	idx := bytes.Index(lc.data[lc.cursor:], needle)
	if idx < 0 {
		return Location{}
	}
	offset := lc.cursor + idx
	lc.cursor = offset + len(needle)
	line, col := lineCol(lc.data, offset)
	return Location{Line: line, Column: col, Offset: offset}
}

func lineCol(data []byte, offset int) (line, col int) {
	line, col = 1, 1
	for i := 0; i < offset && i < len(data); i++ {
		if data[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// Location mirrors ast.Location; kept distinct here so this file has no
// dependency on ast, and the loader fills in the File field itself.
type Location struct {
	Line, Column, Offset int
}
