package embedding

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrModelLoad indicates the embedding model failed its startup check.
var ErrModelLoad = errors.New("embedding model failed to load")

const probeText = "키보드 블루투스 연결 문의"

// Probe embeds a fixed sentence and checks the result is a unit vector of the
// advertised dimension. Run it once at startup.
func Probe(ctx context.Context, e Embedder) error {
	vec, err := e.EmbedSingle(ctx, probeText)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrModelLoad, e.Model(), err)
	}
	if len(vec) != e.Dimension() {
		return fmt.Errorf("%w: %s: dimension %d, want %d", ErrModelLoad, e.Model(), len(vec), e.Dimension())
	}
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if math.Abs(math.Sqrt(sum)-1) > 1e-3 {
		return fmt.Errorf("%w: %s: vector norm %.4f", ErrModelLoad, e.Model(), math.Sqrt(sum))
	}
	return nil
}
