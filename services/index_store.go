package services

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"exam-tutor-platform/internal/logger"
	"exam-tutor-platform/models"
	"exam-tutor-platform/utils"
)

// The index persists as three artifacts next to the configured base
// path: <base>.vec holds the raw vectors, <base>.docs.gz the passage
// texts and <base>.meta.gz the per-passage metadata. Texts are kept
// separately from vectors so a dimension change can re-embed from the
// text artifact alone.
const (
	vecSuffix  = ".vec"
	docsSuffix = ".docs.gz"
	metaSuffix = ".meta.gz"

	vecMagic   uint32 = 0x56454331 // "VEC1"
	vecVersion uint32 = 1
)

var errIncompleteSave = errors.New("index artifacts incomplete")

// saveLocked writes all three artifacts. Failures are logged and
// swallowed; the in-memory index stays authoritative. Callers hold the
// write lock.
func (v *VectorIndex) saveLocked() {
	if v.storePath == "" {
		return
	}
	if err := v.writeArtifactsLocked(); err != nil {
		logger.Error("vector index save failed", "path", v.storePath, "error", err)
	}
}

func (v *VectorIndex) writeArtifactsLocked() error {
	if err := os.MkdirAll(filepath.Dir(v.storePath), 0o755); err != nil {
		return fmt.Errorf("creating index directory: %w", err)
	}

	vecs, err := encodeVectors(v.dimension, v.records)
	if err != nil {
		return err
	}

	texts := make([]string, len(v.records))
	metas := make([]models.DocumentMeta, len(v.records))
	for i := range v.records {
		texts[i] = v.records[i].Text
		metas[i] = v.records[i].Meta
	}

	docs, err := compressJSON(texts)
	if err != nil {
		return fmt.Errorf("encoding documents: %w", err)
	}
	meta, err := compressJSON(metas)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	for _, artifact := range []struct {
		suffix string
		data   []byte
	}{
		{vecSuffix, vecs},
		{docsSuffix, docs},
		{metaSuffix, meta},
	} {
		if err := writeAtomic(v.storePath+artifact.suffix, artifact.data); err != nil {
			return err
		}
	}
	return nil
}

// load restores the index from disk. A missing artifact set is not an
// error; a partial or inconsistent set leaves the index empty.
func (v *VectorIndex) load() error {
	vecPath := v.storePath + vecSuffix
	docsPath := v.storePath + docsSuffix
	metaPath := v.storePath + metaSuffix

	present := 0
	for _, p := range []string{vecPath, docsPath, metaPath} {
		if _, err := os.Stat(p); err == nil {
			present++
		}
	}
	if present == 0 {
		return nil
	}
	if present < 3 {
		return errIncompleteSave
	}

	vecData, err := os.ReadFile(vecPath)
	if err != nil {
		return err
	}
	dim, vectors, err := decodeVectors(vecData)
	if err != nil {
		return fmt.Errorf("decoding vectors: %w", err)
	}

	var texts []string
	if err := decompressJSON(docsPath, &texts); err != nil {
		return fmt.Errorf("decoding documents: %w", err)
	}
	var metas []models.DocumentMeta
	if err := decompressJSON(metaPath, &metas); err != nil {
		return fmt.Errorf("decoding metadata: %w", err)
	}

	if len(vectors) != len(texts) || len(texts) != len(metas) {
		return fmt.Errorf("%w: %d vectors, %d documents, %d metadata entries",
			errIncompleteSave, len(vectors), len(texts), len(metas))
	}

	records := make([]record, len(vectors))
	for i := range vectors {
		records[i] = record{Vector: vectors[i], Text: texts[i], Meta: metas[i]}
	}

	v.mu.Lock()
	v.records = records
	v.dimension = dim
	v.mu.Unlock()

	logger.Info("vector index loaded", "path", v.storePath, "documents", len(records), "dimension", dim)
	return nil
}

func encodeVectors(dim int, records []record) ([]byte, error) {
	var buf bytes.Buffer
	header := []uint32{vecMagic, vecVersion, uint32(dim), uint32(len(records))}
	for _, h := range header {
		if err := binary.Write(&buf, binary.LittleEndian, h); err != nil {
			return nil, err
		}
	}
	for i := range records {
		if len(records[i].Vector) != dim {
			return nil, fmt.Errorf("record %d has dimension %d, expected %d", i, len(records[i].Vector), dim)
		}
		for _, f := range records[i].Vector {
			if err := binary.Write(&buf, binary.LittleEndian, math.Float32bits(f)); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

func decodeVectors(data []byte) (int, [][]float32, error) {
	r := bytes.NewReader(data)
	var magic, version, dim, count uint32
	for _, p := range []*uint32{&magic, &version, &dim, &count} {
		if err := binary.Read(r, binary.LittleEndian, p); err != nil {
			return 0, nil, err
		}
	}
	if magic != vecMagic {
		return 0, nil, fmt.Errorf("bad magic %#x", magic)
	}
	if version != vecVersion {
		return 0, nil, fmt.Errorf("unsupported version %d", version)
	}
	if int(count)*int(dim)*4 != r.Len() {
		return 0, nil, fmt.Errorf("truncated vector blob: want %d bytes, have %d", count*dim*4, r.Len())
	}

	vectors := make([][]float32, count)
	for i := range vectors {
		vec := make([]float32, dim)
		for j := range vec {
			var bits uint32
			if err := binary.Read(r, binary.LittleEndian, &bits); err != nil {
				return 0, nil, err
			}
			vec[j] = math.Float32frombits(bits)
		}
		vectors[i] = vec
	}
	return int(dim), vectors, nil
}

func compressJSON(value interface{}) ([]byte, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	return utils.CompressData(raw, utils.CompressionGzip)
}

func decompressJSON(path string, out interface{}) error {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	raw, err := utils.DecompressData(compressed, utils.CompressionGzip)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// writeAtomic writes through a temp file and renames into place so a
// crash never leaves a half written artifact.
func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
