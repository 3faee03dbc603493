package jtv

import (
	"strings"
	"unicode/utf8"
)

// cp1251High maps bytes 0x80-0xFF of Windows code page 1251 to Unicode.
// 0x98 is unassigned and decodes to U+FFFD. Bytes below 0x80 are ASCII.
var cp1251High = [128]rune{
	// 0x80
	'Ђ', 'Ѓ', '‚', 'ѓ', '„', '…', '†', '‡',
	'€', '‰', 'Љ', '‹', 'Њ', 'Ќ', 'Ћ', 'Џ',
	// 0x90
	'ђ', '‘', '’', '“', '”', '•', '–', '—',
	utf8.RuneError, '™', 'љ', '›', 'њ', 'ќ', 'ћ', 'џ',
	// 0xA0
	'\u00a0', 'Ў', 'ў', 'Ј', '¤', 'Ґ', '¦', '§',
	'Ё', '©', 'Є', '«', '¬', '\u00ad', '®', 'Ї',
	// 0xB0
	'°', '±', 'І', 'і', 'ґ', 'µ', '¶', '·',
	'ё', '№', 'є', '»', 'ј', 'Ѕ', 'ѕ', 'ї',
	// 0xC0
	'А', 'Б', 'В', 'Г', 'Д', 'Е', 'Ж', 'З',
	'И', 'Й', 'К', 'Л', 'М', 'Н', 'О', 'П',
	// 0xD0
	'Р', 'С', 'Т', 'У', 'Ф', 'Х', 'Ц', 'Ч',
	'Ш', 'Щ', 'Ъ', 'Ы', 'Ь', 'Э', 'Ю', 'Я',
	// 0xE0
	'а', 'б', 'в', 'г', 'д', 'е', 'ж', 'з',
	'и', 'й', 'к', 'л', 'м', 'н', 'о', 'п',
	// 0xF0
	'р', 'с', 'т', 'у', 'ф', 'х', 'ц', 'ч',
	'ш', 'щ', 'ъ', 'ы', 'ь', 'э', 'ю', 'я',
}

// CP1251Rune returns the Unicode code point for a single CP1251 byte.
func CP1251Rune(b byte) rune {
	if b < 0x80 {
		return rune(b)
	}
	return cp1251High[b-0x80]
}

// DecodeCP1251 converts CP1251 bytes to a UTF-8 string. It never fails.
func DecodeCP1251(p []byte) string {
	var sb strings.Builder
	sb.Grow(len(p) * 2)
	for _, b := range p {
		if b < 0x80 {
			sb.WriteByte(b)
			continue
		}
		sb.WriteRune(cp1251High[b-0x80])
	}
	return sb.String()
}
