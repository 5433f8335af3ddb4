package codec

import (
	"encoding/base64"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/roach88/duoplan/internal/plan"
)

// compressedPrefix marks a zstd payload. '.' is outside the base64url
// alphabet, so the prefix cannot collide with a plain token.
const compressedPrefix = "z."

// maxDecodedSize bounds zstd output so a hostile link cannot exhaust memory.
const maxDecodedSize = 1 << 20

// zstdEncoder and zstdDecoder are reused across calls.
// zstd.Encoder and zstd.Decoder are safe for concurrent use.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression),
	)
	if err != nil {
		panic("codec: zstd encoder initialization failed: " + err.Error())
	}

	zstdDecoder, err = zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(maxDecodedSize),
	)
	if err != nil {
		panic("codec: zstd decoder initialization failed: " + err.Error())
	}
}

func armor(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func armorCompressed(data []byte) string {
	return compressedPrefix + armor(zstdEncoder.EncodeAll(data, nil))
}

// unarmor reverses armor and armorCompressed. It also accepts standard
// base64 with padding, and a '+' that a query string turned into a space.
func unarmor(token string) ([]byte, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, plan.NewError(plan.ErrCodeMalformedToken, "empty token", nil)
	}

	compressed := strings.HasPrefix(token, compressedPrefix)
	token = strings.TrimPrefix(token, compressedPrefix)
	token = strings.TrimRight(token, "=")
	token = base64Normalizer.Replace(token)

	data, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return nil, plan.NewError(plan.ErrCodeMalformedToken, "token is not base64", err)
	}
	if !compressed {
		return data, nil
	}

	out, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, plan.NewError(plan.ErrCodeMalformedToken, "zstd decompress", err)
	}
	return out, nil
}

var base64Normalizer = strings.NewReplacer("+", "-", "/", "_", " ", "-")
