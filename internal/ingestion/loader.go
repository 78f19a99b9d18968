// Package ingestion turns a directory of policy documents into the ordered
// chunk corpus the similarity index is built over.
package ingestion

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/claims-agent/backend/internal/claims"
	"github.com/claims-agent/backend/pkg/logger"
	"github.com/claims-agent/backend/pkg/utils"
)

type Loader struct {
	docsDir string
	chunker *Chunker
}

// Corpus is the loader's output: the chunk sequence plus a fingerprint of
// the source file set, used to key the on-disk embedding cache.
type Corpus struct {
	Chunks      []claims.PolicyChunk
	Fingerprint string
	Skipped     []string
}

func NewLoader(docsDir string, chunker *Chunker) *Loader {
	return &Loader{docsDir: docsDir, chunker: chunker}
}

// Load walks the docs directory in name order and chunks every supported
// file. A file that fails extraction is skipped with a warning; only an
// unreadable directory or a fully empty corpus is fatal.
func (l *Loader) Load() (*Corpus, error) {
	entries, err := os.ReadDir(l.docsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read docs directory %s: %w", l.docsDir, err)
	}

	var files []string
	var stamps []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if !supportedExtensions[ext] {
			continue
		}
		files = append(files, entry.Name())

		info, err := entry.Info()
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", entry.Name(), err)
		}
		stamps = append(stamps, fmt.Sprintf("%s|%d|%d", entry.Name(), info.Size(), info.ModTime().UnixNano()))
	}
	sort.Strings(files)

	if len(files) == 0 {
		return nil, fmt.Errorf("no policy documents found in %s", l.docsDir)
	}

	corpus := &Corpus{
		Fingerprint: utils.FingerprintSet(stamps),
	}

	position := 0
	for _, name := range files {
		path := filepath.Join(l.docsDir, name)

		text, err := extractFile(path)
		if err != nil {
			if errors.Is(err, claims.ErrExtraction) {
				logger.Warn("Skipping document",
					zap.String("file", name),
					zap.Error(err),
				)
				corpus.Skipped = append(corpus.Skipped, name)
				continue
			}
			return nil, err
		}

		pieces := l.chunker.Chunk(text)
		for i, piece := range pieces {
			corpus.Chunks = append(corpus.Chunks, claims.PolicyChunk{
				ID:             utils.HashString(fmt.Sprintf("%s:%d", name, i)),
				Text:           piece,
				SourceDocument: name,
				Position:       position,
			})
			position++
		}

		logger.Info("Document chunked",
			zap.String("file", name),
			zap.Int("chunks", len(pieces)),
		)
	}

	if len(corpus.Chunks) == 0 {
		return nil, fmt.Errorf("no text could be extracted from %s", l.docsDir)
	}

	logger.Info("Corpus loaded",
		zap.Int("documents", len(files)-len(corpus.Skipped)),
		zap.Int("skipped", len(corpus.Skipped)),
		zap.Int("chunks", len(corpus.Chunks)),
	)

	return corpus, nil
}
