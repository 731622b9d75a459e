// Package corpus loads the canned reply messages and picks one at random.
package corpus

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"
)

// ErrEmpty is returned when a corpus holds no usable message.
var ErrEmpty = errors.New("corpus has no messages")

// Corpus is an ordered pool of reply messages.
type Corpus []string

// Source produces a Corpus.
type Source interface {
	Load() (Corpus, error)
}

// Load returns the corpus itself so a literal Corpus can act as a Source.
func (c Corpus) Load() (Corpus, error) {
	if len(c) == 0 {
		return nil, ErrEmpty
	}
	return c, nil
}

// File is a flat text corpus at a path, one message per line.
type File string

// Load reads the file on every call.
func (f File) Load() (Corpus, error) {
	fh, err := os.Open(string(f))
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	c, err := Parse(fh)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", f, err)
	}
	return c, nil
}

// Parse reads one message per line. Surrounding whitespace is trimmed and
// blank lines are skipped.
func Parse(r io.Reader) (Corpus, error) {
	var out Corpus
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, ErrEmpty
	}
	return out, nil
}

// Chooser picks one message from a corpus.
type Chooser interface {
	Choose(c Corpus) (string, error)
}

// ChooserFunc adapts a function to Chooser.
type ChooserFunc func(c Corpus) (string, error)

func (f ChooserFunc) Choose(c Corpus) (string, error) { return f(c) }

// ShuffleChooser shuffles a copy of the corpus and takes the first message,
// which is a uniform choice.
type ShuffleChooser struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewShuffleChooser(seed int64) *ShuffleChooser {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &ShuffleChooser{rng: rand.New(rand.NewSource(seed))}
}

func (s *ShuffleChooser) Choose(c Corpus) (string, error) {
	if len(c) == 0 {
		return "", ErrEmpty
	}
	shuffled := make(Corpus, len(c))
	copy(shuffled, c)
	s.mu.Lock()
	s.rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
	s.mu.Unlock()
	return shuffled[0], nil
}
