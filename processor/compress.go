package processor

import (
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
)

// Compress сжимает данные блочным форматом snappy
func Compress(data []byte) []byte {
	return snappy.Encode(nil, data)
}

// Decompress распаковывает данные, сжатые Compress
func Decompress(data []byte) ([]byte, error) {
	decompressed, err := snappy.Decode(nil, data)
	if err != nil {
		return nil, fmt.Errorf("ошибка распаковки данных: %w", err)
	}
	return decompressed, nil
}

// EncodeJSON сериализует значение в JSON и сжимает результат
func EncodeJSON(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("ошибка сериализации: %w", err)
	}
	return Compress(raw), nil
}

// DecodeJSON распаковывает данные и разбирает JSON в v
func DecodeJSON(data []byte, v interface{}) error {
	raw, err := Decompress(data)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("ошибка разбора снимка: %w", err)
	}
	return nil
}
