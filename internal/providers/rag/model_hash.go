package rag

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

const ModelNameHash = "hash"

// HashModel is an offline bag-of-words encoder based on feature hashing.
// Texts sharing words land close to each other, which is enough for
// keyword-flavoured recall without any network or model file.
type HashModel struct {
	dims int
}

func NewHashModel(dims int) *HashModel {
	if dims <= 0 {
		dims = 256
	}
	return &HashModel{dims: dims}
}

func (m *HashModel) EncodeQuery(_ context.Context, text string) ([]float32, error) {
	return m.encode(text), nil
}

func (m *HashModel) EncodePassage(_ context.Context, text string) ([]float32, error) {
	return m.encode(text), nil
}

func (m *HashModel) Dims() int {
	return m.dims
}

func (m *HashModel) Shutdown() error {
	return nil
}

func (m *HashModel) encode(text string) []float32 {
	vec := make([]float32, m.dims)
	words := strings.FieldsFunc(cases.Fold().String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	for i, w := range words {
		m.add(vec, w, 1)
		if i > 0 {
			m.add(vec, words[i-1]+" "+w, 0.5)
		}
	}

	// keep empty input from producing a zero vector
	if len(words) == 0 {
		vec[0] = 1
	}
	return normalize(vec)
}

func (m *HashModel) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	h.Write([]byte(feature))
	sum := h.Sum64()

	idx := int(sum % uint64(m.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}

	n := float32(math.Sqrt(norm))
	for i := range vec {
		vec[i] /= n
	}
	return vec
}
