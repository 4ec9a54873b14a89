// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/binary"
	"fmt"
	"sort"
)

// ClipboardFormat identifies one representation of clipboard content.
type ClipboardFormat uint32

const (
	// FormatText is UTF-8 text with LF line endings.
	FormatText ClipboardFormat = 0
	// FormatBitmap is a device independent bitmap.
	FormatBitmap ClipboardFormat = 1
	// FormatHTML is UTF-8 HTML.
	FormatHTML ClipboardFormat = 2

	formatCount = 3
)

// String returns the format name.
func (f ClipboardFormat) String() string {
	switch f {
	case FormatText:
		return "text"
	case FormatBitmap:
		return "bitmap"
	case FormatHTML:
		return "html"
	default:
		return fmt.Sprintf("format(%d)", uint32(f))
	}
}

// Clipboard is the content carried by a DCLP message: the same data in
// up to one representation per format. The zero value is an empty
// clipboard.
type Clipboard struct {
	Formats map[ClipboardFormat][]byte
}

// Text returns the text representation, if any.
func (c Clipboard) Text() (string, bool) {
	data, ok := c.Formats[FormatText]
	return string(data), ok
}

// Size returns the total bytes of content across formats.
func (c Clipboard) Size() int {
	total := 0
	for _, data := range c.Formats {
		total += len(data)
	}
	return total
}

// Marshal encodes the clipboard: a 4-byte format count, then for each
// format (in ascending id order) a 4-byte id, a 4-byte size and the
// data.
func (c Clipboard) Marshal() []byte {
	formats := make([]ClipboardFormat, 0, len(c.Formats))
	for format := range c.Formats {
		formats = append(formats, format)
	}
	sort.Slice(formats, func(i, j int) bool { return formats[i] < formats[j] })

	buffer := binary.BigEndian.AppendUint32(make([]byte, 0, 4+c.Size()+8*len(formats)), uint32(len(formats)))
	for _, format := range formats {
		data := c.Formats[format]
		buffer = binary.BigEndian.AppendUint32(buffer, uint32(format))
		buffer = binary.BigEndian.AppendUint32(buffer, uint32(len(data)))
		buffer = append(buffer, data...)
	}
	return buffer
}

// UnmarshalClipboard decodes data produced by Marshal. Formats this
// implementation does not know are skipped, as older peers do.
func UnmarshalClipboard(data []byte) (Clipboard, error) {
	if len(data) < 4 {
		return Clipboard{}, truncated("clipboard of %d bytes has no format count", len(data))
	}
	count := binary.BigEndian.Uint32(data)
	offset := 4
	clipboard := Clipboard{Formats: make(map[ClipboardFormat][]byte)}
	for index := uint32(0); index < count; index++ {
		if len(data)-offset < 8 {
			return Clipboard{}, truncated("clipboard format header %d", index)
		}
		format := ClipboardFormat(binary.BigEndian.Uint32(data[offset:]))
		size := int(binary.BigEndian.Uint32(data[offset+4:]))
		offset += 8
		if size > len(data)-offset {
			return Clipboard{}, truncated("clipboard format %s of %d bytes", format, size)
		}
		if format < formatCount {
			clipboard.Formats[format] = append([]byte(nil), data[offset:offset+size]...)
		}
		offset += size
	}
	if offset != len(data) {
		return Clipboard{}, malformed("%d trailing bytes after clipboard", len(data)-offset)
	}
	return clipboard, nil
}
