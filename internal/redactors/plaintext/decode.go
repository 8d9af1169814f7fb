// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
// SPDX-License-Identifier: Apache-2.0

package plaintext

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// 0x98 is the only byte Windows-1251 leaves unassigned
const undefinedCP1251Byte = 0x98

// DecodeText decodes data trying UTF-8, then Windows-1251, then ISO-8859-1.
// The last step maps every byte, so decoding always succeeds.
func DecodeText(data []byte) string {
	if utf8.Valid(data) {
		return string(data)
	}

	if bytes.IndexByte(data, undefinedCP1251Byte) < 0 {
		if decoded, err := charmap.Windows1251.NewDecoder().Bytes(data); err == nil {
			return string(decoded)
		}
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return string(bytes.ToValidUTF8(data, []byte("\uFFFD")))
	}
	return string(decoded)
}
