// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package protocol

import (
	"encoding/binary"
	"fmt"
	"reflect"
)

// directive is one parsed %-sequence of a format string.
type directive struct {
	verb  byte // 'i', 'I', 's' or '%'
	width int  // 1, 2 or 4 for 'i' and 'I'
	size  int  // bytes of format consumed
}

func parseDirective(format string, position int) (directive, error) {
	if position+1 >= len(format) {
		return directive{}, fmt.Errorf("protocol: format %q ends inside a directive", format)
	}
	switch next := format[position+1]; next {
	case '%':
		return directive{verb: '%', size: 2}, nil
	case 's':
		return directive{verb: 's', size: 2}, nil
	case '1', '2', '4':
		if position+2 >= len(format) {
			return directive{}, fmt.Errorf("protocol: format %q ends inside a directive", format)
		}
		verb := format[position+2]
		if verb != 'i' && verb != 'I' {
			return directive{}, fmt.Errorf("protocol: format %q has unknown directive %%%c%c", format, next, verb)
		}
		return directive{verb: verb, width: int(next - '0'), size: 3}, nil
	default:
		return directive{}, fmt.Errorf("protocol: format %q has unknown directive %%%c", format, next)
	}
}

// Pack encodes args according to format. Integer arguments may be any
// integer type, including named ones; values wider than the field are
// truncated to its low bytes, so negative coordinates encode as two's
// complement. %s accepts strings and byte slices; %nI accepts slices of
// any integer type.
//
// Errors from Pack are programming mistakes (bad format, wrong argument
// count or type), not *Error values.
func Pack(format string, args ...any) ([]byte, error) {
	return AppendPack(nil, format, args...)
}

// AppendPack is Pack appending to buffer.
func AppendPack(buffer []byte, format string, args ...any) ([]byte, error) {
	argumentIndex := 0
	for position := 0; position < len(format); {
		if format[position] != '%' {
			buffer = append(buffer, format[position])
			position++
			continue
		}
		parsed, err := parseDirective(format, position)
		if err != nil {
			return nil, err
		}
		position += parsed.size
		if parsed.verb == '%' {
			buffer = append(buffer, '%')
			continue
		}

		if argumentIndex >= len(args) {
			return nil, fmt.Errorf("protocol: format %q needs more than %d arguments", format, len(args))
		}
		argument := reflect.ValueOf(args[argumentIndex])
		argumentIndex++

		switch parsed.verb {
		case 'i':
			value, ok := integerValue(argument)
			if !ok {
				return nil, fmt.Errorf("protocol: format %q argument %d: %%%di needs an integer, got %T",
					format, argumentIndex, parsed.width, args[argumentIndex-1])
			}
			buffer = appendInteger(buffer, value, parsed.width)

		case 'I':
			if !argument.IsValid() || argument.Kind() != reflect.Slice {
				return nil, fmt.Errorf("protocol: format %q argument %d: %%%dI needs an integer slice, got %T",
					format, argumentIndex, parsed.width, args[argumentIndex-1])
			}
			buffer = appendInteger(buffer, uint64(argument.Len()), 4)
			for element := 0; element < argument.Len(); element++ {
				value, ok := integerValue(argument.Index(element))
				if !ok {
					return nil, fmt.Errorf("protocol: format %q argument %d: %%%dI needs an integer slice, got %T",
						format, argumentIndex, parsed.width, args[argumentIndex-1])
				}
				buffer = appendInteger(buffer, value, parsed.width)
			}

		case 's':
			data, ok := bytesValue(argument)
			if !ok {
				return nil, fmt.Errorf("protocol: format %q argument %d: %%s needs a string or []byte, got %T",
					format, argumentIndex, args[argumentIndex-1])
			}
			buffer = appendInteger(buffer, uint64(len(data)), 4)
			buffer = append(buffer, data...)
		}
	}
	if argumentIndex != len(args) {
		return nil, fmt.Errorf("protocol: format %q uses %d arguments, got %d", format, argumentIndex, len(args))
	}
	return buffer, nil
}

// Unpack decodes packet according to format into targets, which must be
// pointers: to an integer type exactly as wide as the field for %ni
// (signed targets are sign-extended), to a slice of such integers for
// %nI, and to string or []byte for %s. The whole packet must be
// consumed.
//
// Input that does not fit the format yields an *Error of kind
// MalformedMessage or UnexpectedEOF. Target mismatches are programming
// mistakes and yield plain errors.
func Unpack(packet []byte, format string, targets ...any) error {
	offset := 0
	targetIndex := 0
	for position := 0; position < len(format); {
		if format[position] != '%' {
			if offset >= len(packet) {
				return truncated("expected %q at byte %d", format[position], offset)
			}
			if packet[offset] != format[position] {
				return malformed("byte %d is %q, format %q expects %q", offset, packet[offset], format, format[position])
			}
			offset++
			position++
			continue
		}
		parsed, err := parseDirective(format, position)
		if err != nil {
			return err
		}
		position += parsed.size
		if parsed.verb == '%' {
			if offset >= len(packet) {
				return truncated("expected '%%' at byte %d", offset)
			}
			if packet[offset] != '%' {
				return malformed("byte %d is %q, format %q expects '%%'", offset, packet[offset], format)
			}
			offset++
			continue
		}

		if targetIndex >= len(targets) {
			return fmt.Errorf("protocol: format %q needs more than %d targets", format, len(targets))
		}
		target := reflect.ValueOf(targets[targetIndex])
		targetIndex++
		if !target.IsValid() || target.Kind() != reflect.Pointer || target.IsNil() {
			return fmt.Errorf("protocol: format %q target %d: need a non-nil pointer, got %T", format, targetIndex, targets[targetIndex-1])
		}
		destination := target.Elem()

		switch parsed.verb {
		case 'i':
			if !integerTarget(destination.Type(), parsed.width) {
				return fmt.Errorf("protocol: format %q target %d: %%%di needs a pointer to a %d-byte integer, got %T",
					format, targetIndex, parsed.width, parsed.width, targets[targetIndex-1])
			}
			if offset+parsed.width > len(packet) {
				return truncated("%d-byte integer at byte %d", parsed.width, offset)
			}
			setInteger(destination, readInteger(packet[offset:], parsed.width), parsed.width)
			offset += parsed.width

		case 'I':
			if destination.Kind() != reflect.Slice || !integerTarget(destination.Type().Elem(), parsed.width) {
				return fmt.Errorf("protocol: format %q target %d: %%%dI needs a pointer to a slice of %d-byte integers, got %T",
					format, targetIndex, parsed.width, parsed.width, targets[targetIndex-1])
			}
			if offset+4 > len(packet) {
				return truncated("vector count at byte %d", offset)
			}
			count := int(readInteger(packet[offset:], 4))
			offset += 4
			if count > (len(packet)-offset)/parsed.width {
				return truncated("vector of %d %d-byte integers at byte %d", count, parsed.width, offset)
			}
			slice := reflect.MakeSlice(destination.Type(), count, count)
			for element := 0; element < count; element++ {
				setInteger(slice.Index(element), readInteger(packet[offset:], parsed.width), parsed.width)
				offset += parsed.width
			}
			destination.Set(slice)

		case 's':
			if offset+4 > len(packet) {
				return truncated("string length at byte %d", offset)
			}
			length := int(readInteger(packet[offset:], 4))
			offset += 4
			if length > len(packet)-offset {
				return truncated("string of %d bytes at byte %d", length, offset)
			}
			data := packet[offset : offset+length]
			offset += length
			switch {
			case destination.Kind() == reflect.String:
				destination.SetString(string(data))
			case destination.Kind() == reflect.Slice && destination.Type().Elem().Kind() == reflect.Uint8:
				destination.SetBytes(append([]byte(nil), data...))
			default:
				return fmt.Errorf("protocol: format %q target %d: %%s needs *string or *[]byte, got %T",
					format, targetIndex, targets[targetIndex-1])
			}
		}
	}
	if targetIndex != len(targets) {
		return fmt.Errorf("protocol: format %q uses %d targets, got %d", format, targetIndex, len(targets))
	}
	if offset != len(packet) {
		return malformed("%d trailing bytes after format %q", len(packet)-offset, format)
	}
	return nil
}

func integerValue(value reflect.Value) (uint64, bool) {
	if !value.IsValid() {
		return 0, false
	}
	switch value.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return uint64(value.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return value.Uint(), true
	case reflect.Bool:
		if value.Bool() {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func bytesValue(value reflect.Value) ([]byte, bool) {
	if !value.IsValid() {
		return nil, false
	}
	switch {
	case value.Kind() == reflect.String:
		return []byte(value.String()), true
	case value.Kind() == reflect.Slice && value.Type().Elem().Kind() == reflect.Uint8:
		return value.Bytes(), true
	default:
		return nil, false
	}
}

func integerTarget(targetType reflect.Type, width int) bool {
	switch targetType.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Uint8, reflect.Uint16, reflect.Uint32:
		return int(targetType.Size()) == width
	default:
		return false
	}
}

func setInteger(destination reflect.Value, value uint64, width int) {
	switch destination.Kind() {
	case reflect.Int8, reflect.Int16, reflect.Int32:
		shift := 64 - 8*width
		destination.SetInt(int64(value<<shift) >> shift)
	default:
		destination.SetUint(value)
	}
}

func appendInteger(buffer []byte, value uint64, width int) []byte {
	switch width {
	case 1:
		return append(buffer, byte(value))
	case 2:
		return binary.BigEndian.AppendUint16(buffer, uint16(value))
	default:
		return binary.BigEndian.AppendUint32(buffer, uint32(value))
	}
}

func readInteger(data []byte, width int) uint64 {
	switch width {
	case 1:
		return uint64(data[0])
	case 2:
		return uint64(binary.BigEndian.Uint16(data))
	default:
		return uint64(binary.BigEndian.Uint32(data))
	}
}
