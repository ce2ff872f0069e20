package repository

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/gob"
	"fmt"

	"github.com/golang/snappy"

	"WeatherCast/internal/domain/models"
)

// Model blob layout:
//
//	magic   [4]byte  "WCMB"
//	version uint32   models.ModelSchemaVersion
//	length  uint64   payload length
//	sum     [32]byte sha256 of payload
//	payload          snappy(gob(TrainedModel))
const (
	blobMagic      = "WCMB"
	blobHeaderSize = 4 + 4 + 8 + sha256.Size
)

// ModelFileExt is appended to model names that carry no extension.
const ModelFileExt = ".wcm"

// EncodeModel serializes a validated model into one self-checking blob.
func EncodeModel(m *models.TrainedModel) ([]byte, error) {
	if m == nil {
		return nil, fmt.Errorf("encode model: nil model")
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	var raw bytes.Buffer
	if err := gob.NewEncoder(&raw).Encode(m); err != nil {
		return nil, fmt.Errorf("encode model: gob: %w", err)
	}
	payload := snappy.Encode(nil, raw.Bytes())
	sum := sha256.Sum256(payload)

	out := make([]byte, blobHeaderSize, blobHeaderSize+len(payload))
	copy(out[0:4], blobMagic)
	binary.BigEndian.PutUint32(out[4:8], uint32(m.SchemaVersion))
	binary.BigEndian.PutUint64(out[8:16], uint64(len(payload)))
	copy(out[16:blobHeaderSize], sum[:])
	return append(out, payload...), nil
}

// DecodeModel reverses EncodeModel. Any defect in the blob yields a
// *models.ModelLoadError; a partially decoded model is never returned.
func DecodeModel(name string, data []byte) (*models.TrainedModel, error) {
	if len(data) < blobHeaderSize {
		return nil, models.NewModelLoadError(name, fmt.Sprintf("blob is %d bytes", len(data)), models.ErrTruncatedModel)
	}
	if string(data[0:4]) != blobMagic {
		return nil, models.NewModelLoadError(name, "not a model blob", nil)
	}
	if v := binary.BigEndian.Uint32(data[4:8]); v != models.ModelSchemaVersion {
		return nil, models.NewModelLoadError(name, fmt.Sprintf("schema version %d", v), models.ErrSchemaVersion)
	}
	n := binary.BigEndian.Uint64(data[8:16])
	payload := data[blobHeaderSize:]
	if uint64(len(payload)) != n {
		return nil, models.NewModelLoadError(name, fmt.Sprintf("payload is %d bytes, header says %d", len(payload), n), models.ErrTruncatedModel)
	}
	sum := sha256.Sum256(payload)
	if !bytes.Equal(sum[:], data[16:blobHeaderSize]) {
		return nil, models.NewModelLoadError(name, "payload", models.ErrChecksumMismatch)
	}
	raw, err := snappy.Decode(nil, payload)
	if err != nil {
		return nil, models.NewModelLoadError(name, "decompress", err)
	}
	var m models.TrainedModel
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&m); err != nil {
		return nil, models.NewModelLoadError(name, "decode", err)
	}
	if err := m.Validate(); err != nil {
		return nil, models.NewModelLoadError(name, "invalid model", err)
	}
	return &m, nil
}
