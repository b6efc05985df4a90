package s3

import (
	"encoding/base64"
	"encoding/binary"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// EncodeChecksum renders crc the way S3 expects ChecksumCRC32C: base64 of
// the big-endian bytes.
func EncodeChecksum(crc uint32) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], crc)
	return base64.StdEncoding.EncodeToString(b[:])
}

// DecodeChecksum parses a ChecksumCRC32C value. Composite checksums of
// multipart uploads ("<base64>-<parts>") are checksums of part checksums,
// not of the object, and are rejected.
func DecodeChecksum(s string) (uint32, bool) {
	if s == "" || strings.Contains(s, "-") {
		return 0, false
	}
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(b) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(b), true
}

// fullObjectChecksum returns the object CRC32C from a response, if the
// response carries one for the whole object.
func fullObjectChecksum(value *string, typ types.ChecksumType) (uint32, bool) {
	if value == nil || typ == types.ChecksumTypeComposite {
		return 0, false
	}
	return DecodeChecksum(*value)
}
