package semantic

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// EmbeddingDim is the vector size stored in query_examples.embedding
const EmbeddingDim = 384

// Embedder turns text into a fixed-size vector
type Embedder interface {
	Embed(text string) []float32
	Dimensions() int
}

// HashEmbedder creates a basic text representation for similarity matching.
// It needs no model: character bigrams and words are hashed into buckets,
// and domain keywords get dedicated slots so "NPL" and "연체" questions
// land near their golden examples.
type HashEmbedder struct{}

// NewHashEmbedder creates the default embedder
func NewHashEmbedder() *HashEmbedder {
	return &HashEmbedder{}
}

// Dimensions returns the vector size
func (e *HashEmbedder) Dimensions() int { return EmbeddingDim }

// keywords get slots 0..len(keywords)-1; hashed features use the rest
var keywords = []string{
	"npl", "연체", "부실", "고정", "회수의문", "추정손실", "substandard", "doubtful", "loss",
	"credit", "신용", "등급", "grade", "sector", "업종", "섹터", "exposure", "익스포저",
	"concentration", "집중", "pd", "lgd", "ead", "var", "pnl", "손익", "한도", "limit",
	"stress", "스트레스", "시나리오", "scenario", "sensitivity", "민감도",
	"lcr", "nsfr", "hqla", "유동성", "liquidity", "maturity", "만기", "gap", "갭",
	"buffer", "버퍼", "funding", "조달", "ncr", "자본", "capital", "risk", "리스크", "위험",
	"trend", "추이", "추세", "month", "개월", "월별", "latest", "최근", "current", "현재",
	"top", "상위", "highest", "가장", "ratio", "비율", "amount", "금액", "total", "합계",
	"average", "평균", "compare", "비교", "composition", "구성",
}

// Embed returns an L2-normalised vector for text
func (e *HashEmbedder) Embed(text string) []float32 {
	embedding := make([]float32, EmbeddingDim)
	text = strings.ToLower(strings.TrimSpace(text))
	if text == "" {
		return embedding
	}

	for i, keyword := range keywords {
		if strings.Contains(text, keyword) {
			embedding[i] = 1.0
		}
	}

	offset := len(keywords)
	buckets := EmbeddingDim - offset

	// Word features
	for _, word := range strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		embedding[offset+bucket(word, buckets)] += 0.5
	}

	// Character bigram features; these carry Hangul, which has no spaces inside compounds
	runes := []rune(text)
	for i := 0; i+1 < len(runes); i++ {
		if unicode.IsSpace(runes[i]) || unicode.IsSpace(runes[i+1]) {
			continue
		}
		embedding[offset+bucket(string(runes[i:i+2]), buckets)] += 0.25
	}

	var magnitude float64
	for _, val := range embedding {
		magnitude += float64(val * val)
	}
	if magnitude > 0 {
		norm := float32(1.0 / math.Sqrt(magnitude))
		for i := range embedding {
			embedding[i] *= norm
		}
	}

	return embedding
}

func bucket(s string, n int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(n))
}

// CosineSimilarity of two equal-length vectors; 0 when either is all zeros
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
