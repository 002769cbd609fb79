package storage

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/annel0/terragen/internal/config"
	"github.com/annel0/terragen/internal/logging"
	"github.com/annel0/terragen/internal/pipeline"
	"github.com/cespare/xxhash/v2"
	"github.com/dgraph-io/badger/v3"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// ErrSnapshotNotFound - снимка с таким отпечатком нет
var ErrSnapshotNotFound = errors.New("storage: снимок не найден")

// blobChunkSize - размер части сжатого растра в одной записи BadgerDB
const blobChunkSize = 1 << 20

// Имена растров снимка
const (
	blobRaw          = "raw"
	blobColor        = "color"
	blobPreview      = "preview"
	blobPreviewColor = "preview_color"
	blobFull         = "full"
	blobDischarge    = "discharge"
	blobErodibility  = "erodibility"
)

// SnapshotMeta - метаданные сохранённой сессии
type SnapshotMeta struct {
	Fingerprint string            `json:"fingerprint"`
	RunID       string            `json:"run_id"`
	Generation  config.Generation `json:"generation"`
	Mode        string            `json:"mode"`
	BaseSize    int               `json:"base_size"`
	LevelSize   int               `json:"level_size"`
	MaxAltitude float64           `json:"max_altitude"`
	CreatedAt   time.Time         `json:"created_at"`
	// Blobs - имя растра → число частей
	Blobs map[string]int `json:"blobs"`
}

// SnapshotStore хранит результаты сессий в BadgerDB; растры сжаты zstd
type SnapshotStore struct {
	db      *badger.DB
	dbPath  string
	mutex   sync.RWMutex
	isReady bool

	encoder *zstd.Encoder
	decoder *zstd.Decoder
	log     *logging.Logger
}

// NewSnapshotStore открывает хранилище снимков в каталоге dataPath/snapshots
func NewSnapshotStore(dataPath string) (*SnapshotStore, error) {
	dbPath := filepath.Join(dataPath, "snapshots")
	opts := badger.DefaultOptions(dbPath)
	opts.Logger = nil // Отключаем логирование BadgerDB
	return openStore(opts, dbPath)
}

// NewMemorySnapshotStore открывает хранилище в памяти (тесты, разовые прогоны)
func NewMemorySnapshotStore() (*SnapshotStore, error) {
	opts := badger.DefaultOptions("").WithInMemory(true)
	opts.Logger = nil
	return openStore(opts, "")
}

func openStore(opts badger.Options, dbPath string) (*SnapshotStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("не удалось открыть BadgerDB: %w", err)
	}

	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ошибка создания zstd кодера: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		encoder.Close()
		db.Close()
		return nil, fmt.Errorf("ошибка создания zstd декодера: %w", err)
	}

	return &SnapshotStore{
		db:      db,
		dbPath:  dbPath,
		isReady: true,
		encoder: encoder,
		decoder: decoder,
		log:     logging.GetStorageLogger(),
	}, nil
}

// Close закрывает хранилище
func (s *SnapshotStore) Close() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if !s.isReady {
		return nil
	}

	s.isReady = false
	s.encoder.Close()
	s.decoder.Close()
	return s.db.Close()
}

// Fingerprint - отпечаток параметров генерации (xxhash от JSON), ключ снимка
func Fingerprint(cfg config.Generation) string {
	data, _ := json.Marshal(cfg)
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

// Save сохраняет результаты сессии под отпечатком её параметров.
// Предыдущий снимок с тем же отпечатком заменяется.
func (s *SnapshotStore) Save(ctx context.Context, sess *pipeline.Session) (string, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return "", fmt.Errorf("хранилище не готово")
	}

	cfg := sess.Config()
	out := sess.Outputs()
	fp := Fingerprint(cfg)

	if err := s.deletePrefix(snapshotPrefix(fp)); err != nil {
		return "", err
	}

	meta := SnapshotMeta{
		Fingerprint: fp,
		RunID:       out.RunID.String(),
		Generation:  cfg,
		Mode:        out.Mode.String(),
		BaseSize:    out.BaseSize,
		LevelSize:   out.LevelSize,
		MaxAltitude: out.MaxAltitude,
		CreatedAt:   time.Now().UTC(),
		Blobs:       make(map[string]int),
	}

	blobs := map[string][]byte{
		blobRaw:          uint16Bytes(out.RawMap512),
		blobColor:        out.ColorMap512,
		blobPreview:      uint16Bytes(out.ErodedRaw512),
		blobPreviewColor: out.ErodedColor512,
		blobFull:         uint16Bytes(out.ErodedFull),
		blobDischarge:    out.Discharge,
		blobErodibility:  float32Bytes(out.Erodibility),
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()

	total := 0
	for name, data := range blobs {
		if len(data) == 0 {
			continue
		}
		if err := ctx.Err(); err != nil {
			return "", err
		}

		compressed := s.encoder.EncodeAll(data, nil)
		parts := 0
		for off := 0; off < len(compressed); off += blobChunkSize {
			end := off + blobChunkSize
			if end > len(compressed) {
				end = len(compressed)
			}
			if err := wb.Set(blobKey(fp, name, parts), compressed[off:end]); err != nil {
				return "", fmt.Errorf("ошибка записи растра %s: %w", name, err)
			}
			parts++
		}
		meta.Blobs[name] = parts
		total += len(compressed)
	}

	data, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("ошибка сериализации метаданных: %w", err)
	}
	if err := wb.Set(metaKey(fp), data); err != nil {
		return "", fmt.Errorf("ошибка записи метаданных: %w", err)
	}
	if err := wb.Flush(); err != nil {
		return "", fmt.Errorf("ошибка сохранения в BadgerDB: %w", err)
	}

	s.log.Info("💾 Снимок %s сохранён (run=%s, %d КБ сжатых растров)", fp, meta.RunID, total/1024)
	return fp, nil
}

// LoadMeta читает метаданные снимка
func (s *SnapshotStore) LoadMeta(fingerprint string) (*SnapshotMeta, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}
	return s.loadMeta(fingerprint)
}

// Load восстанавливает сессию по отпечатку
func (s *SnapshotStore) Load(ctx context.Context, fingerprint string) (*pipeline.Session, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	meta, err := s.loadMeta(fingerprint)
	if err != nil {
		return nil, err
	}

	mode, err := pipeline.ParseMode(meta.Mode)
	if err != nil {
		return nil, err
	}
	runID, err := uuid.Parse(meta.RunID)
	if err != nil {
		return nil, fmt.Errorf("некорректный run_id снимка: %w", err)
	}

	out := pipeline.Outputs{
		RunID:       runID,
		Seed:        meta.Generation.Seed,
		Mode:        mode,
		BaseSize:    meta.BaseSize,
		LevelSize:   meta.LevelSize,
		MaxAltitude: meta.MaxAltitude,
	}

	blobs := make(map[string][]byte, len(meta.Blobs))
	err = s.db.View(func(txn *badger.Txn) error {
		for name, parts := range meta.Blobs {
			if err := ctx.Err(); err != nil {
				return err
			}
			var compressed []byte
			for part := 0; part < parts; part++ {
				item, err := txn.Get(blobKey(fingerprint, name, part))
				if err != nil {
					return fmt.Errorf("растр %s, часть %d: %w", name, part, err)
				}
				chunk, err := item.ValueCopy(nil)
				if err != nil {
					return err
				}
				compressed = append(compressed, chunk...)
			}
			data, err := s.decoder.DecodeAll(compressed, nil)
			if err != nil {
				return fmt.Errorf("ошибка распаковки растра %s: %w", name, err)
			}
			blobs[name] = data
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	out.RawMap512 = bytesUint16(blobs[blobRaw])
	out.ColorMap512 = blobs[blobColor]
	out.ErodedRaw512 = bytesUint16(blobs[blobPreview])
	out.ErodedColor512 = blobs[blobPreviewColor]
	out.ErodedFull = bytesUint16(blobs[blobFull])
	out.Discharge = blobs[blobDischarge]
	out.Erodibility = bytesFloat32(blobs[blobErodibility])

	return pipeline.Restore(meta.Generation, out)
}

// Delete удаляет снимок
func (s *SnapshotStore) Delete(fingerprint string) error {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return fmt.Errorf("хранилище не готово")
	}
	return s.deletePrefix(snapshotPrefix(fingerprint))
}

// List возвращает метаданные всех снимков
func (s *SnapshotStore) List() ([]SnapshotMeta, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	if !s.isReady {
		return nil, fmt.Errorf("хранилище не готово")
	}

	var metas []SnapshotMeta
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte("snapshot:")
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			item := it.Item()
			if !strings.HasSuffix(string(item.Key()), ":meta") {
				continue
			}
			err := item.Value(func(val []byte) error {
				var meta SnapshotMeta
				if err := json.Unmarshal(val, &meta); err != nil {
					return err
				}
				metas = append(metas, meta)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	return metas, nil
}

func (s *SnapshotStore) loadMeta(fingerprint string) (*SnapshotMeta, error) {
	var data []byte
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(metaKey(fingerprint))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte{}, val...)
			return nil
		})
	})

	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, fingerprint)
	}
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}

	var meta SnapshotMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("ошибка десериализации метаданных: %w", err)
	}
	return &meta, nil
}

func (s *SnapshotStore) deletePrefix(prefix []byte) error {
	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = prefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, it.Item().KeyCopy(nil))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("ошибка чтения из BadgerDB: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}

	wb := s.db.NewWriteBatch()
	defer wb.Cancel()
	for _, key := range keys {
		if err := wb.Delete(key); err != nil {
			return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("ошибка удаления из BadgerDB: %w", err)
	}
	return nil
}

func snapshotPrefix(fp string) []byte {
	return []byte("snapshot:" + fp + ":")
}

func metaKey(fp string) []byte {
	return []byte("snapshot:" + fp + ":meta")
}

func blobKey(fp, name string, part int) []byte {
	return []byte(fmt.Sprintf("snapshot:%s:blob:%s:%04d", fp, name, part))
}

func uint16Bytes(pix []uint16) []byte {
	if len(pix) == 0 {
		return nil
	}
	out := make([]byte, 2*len(pix))
	for i, v := range pix {
		binary.LittleEndian.PutUint16(out[2*i:], v)
	}
	return out
}

func bytesUint16(data []byte) []uint16 {
	if len(data) == 0 {
		return nil
	}
	out := make([]uint16, len(data)/2)
	for i := range out {
		out[i] = binary.LittleEndian.Uint16(data[2*i:])
	}
	return out
}

func float32Bytes(values []float32) []byte {
	if len(values) == 0 {
		return nil
	}
	out := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(out[4*i:], math.Float32bits(v))
	}
	return out
}

func bytesFloat32(data []byte) []float32 {
	if len(data) == 0 {
		return nil
	}
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out
}
