package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// FontResolver turns a logical font family into a font file path.
type FontResolver interface {
	Resolve(family string) (string, error)
}

// fontResolver uses a fixed file when configured, otherwise asks fontconfig.
// Lookups are cached per family.
type fontResolver struct {
	file  string
	fcBin string

	mu    sync.Mutex
	cache map[string]string
}

// NewFontResolver returns a resolver that always answers fontFile when it is
// set, and falls back to fc-match otherwise.
func NewFontResolver(fontFile string) FontResolver {
	return &fontResolver{file: strings.TrimSpace(fontFile), fcBin: "fc-match", cache: map[string]string{}}
}

func (r *fontResolver) Resolve(family string) (string, error) {
	if r.file != "" {
		if _, err := os.Stat(r.file); err != nil {
			return "", fmt.Errorf("caption font file: %w", err)
		}
		return r.file, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.cache[family]; ok {
		return p, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	out, err := exec.CommandContext(ctx, r.fcBin, "-f", "%{file}", family).Output()
	if err != nil {
		return "", fmt.Errorf("resolve font %q with %s: %w", family, r.fcBin, err)
	}
	p := strings.TrimSpace(string(out))
	if p == "" {
		return "", fmt.Errorf("resolve font %q: no match", family)
	}
	r.cache[family] = p
	return p, nil
}
