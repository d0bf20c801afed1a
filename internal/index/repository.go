package index

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"strings"
	"sync"

	"repoatlas/internal/chunker"
	"repoatlas/internal/model"
	"repoatlas/internal/vectorstore"
)

// Stats reports the outcome of indexing one repository.
type Stats struct {
	Files          int
	FilesIndexed   int
	FilesUnchanged int
	FilesSkipped   int
	Chunks         int
	StaleRemoved   int
}

// fileWork is one file read and split, or the reason it could not be.
type fileWork struct {
	file        *model.File
	chunks      []chunker.Chunk
	fingerprint string
	err         error
}

// IndexRepository chunks every file of repo, embeds the chunks whose file
// changed since the last run and removes entries of this repository that no
// longer exist. Unreadable files are logged and skipped. A file counts as
// changed when its content, the chunk settings or the embedding model
// differ from the stored fingerprint.
func (ix *Indexer) IndexRepository(ctx context.Context, repo *model.Repository) (*Stats, error) {
	log := ix.log.With("repo", repo.Name)
	stats := &Stats{Files: len(repo.Files)}

	if _, err := ix.CheckModel(ctx); err != nil {
		return nil, err
	}

	existing, err := ix.coll.Get(ctx, map[string]string{"repo": repo.Name})
	if err != nil {
		return nil, fmt.Errorf("list indexed chunks: %w", err)
	}
	known := make(map[string]string, existing.Len())
	for i, id := range existing.IDs {
		fp, _ := existing.Metadatas[i]["fingerprint"].(string)
		known[id] = fp
	}

	keep := make(map[string]bool, len(known))
	var docs []Document
	for w := range ix.readFiles(ctx, repo.Files) {
		if w.err != nil {
			log.Warn("skipping unreadable file", "file", w.file.Path, "err", w.err)
			stats.FilesSkipped++
			continue
		}

		ids := make([]string, len(w.chunks))
		unchanged := !ix.opts.Force
		for i := range w.chunks {
			ids[i] = model.ChunkID(repo.Name, w.file.Path, i)
			keep[ids[i]] = true
			if known[ids[i]] != w.fingerprint {
				unchanged = false
			}
		}
		stats.Chunks += len(w.chunks)
		if unchanged {
			stats.FilesUnchanged++
			continue
		}

		stats.FilesIndexed++
		docs = append(docs, chunkDocuments(repo.Name, ix.emb.Model(), w, ids)...)
	}
	if err := ctx.Err(); err != nil {
		return stats, err
	}

	log.Info("embedding chunks", "documents", len(docs), "unchanged_files", stats.FilesUnchanged)
	if err := ix.AddDocuments(ctx, docs); err != nil {
		return stats, err
	}

	var stale []string
	for id := range known {
		if !keep[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) > 0 {
		if err := ix.coll.Delete(ctx, stale); err != nil {
			return stats, fmt.Errorf("delete stale chunks: %w", err)
		}
		stats.StaleRemoved = len(stale)
		log.Info("removed stale chunks", "count", len(stale))
	}
	if err := ix.settleModel(ctx); err != nil {
		return stats, err
	}
	return stats, nil
}

// settleModel records the current embedding model on the collection once
// every stored chunk has been embedded with it.
func (ix *Indexer) settleModel(ctx context.Context) error {
	current := ix.emb.Model()
	stored, err := ix.coll.Model(ctx)
	if err != nil {
		return fmt.Errorf("read collection model: %w", err)
	}
	if stored == current {
		return nil
	}
	all, err := ix.coll.Get(ctx, nil)
	if err != nil {
		return fmt.Errorf("list indexed chunks: %w", err)
	}
	for _, md := range all.Metadatas {
		if md["model"] != current {
			return nil
		}
	}
	ix.log.Info("collection re-embedded with new model", "previous_model", stored, "model", current)
	return ix.coll.SetModel(ctx, current)
}

// readFiles reads and splits files on a bounded set of workers and yields
// the results in the order of files.
func (ix *Indexer) readFiles(ctx context.Context, files []model.File) <-chan fileWork {
	results := make([]chan fileWork, len(files))
	for i := range results {
		results[i] = make(chan fileWork, 1)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for range ix.opts.Workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				results[i] <- ix.readFile(&files[i])
			}
		}()
	}
	go func() {
		defer close(jobs)
		for i := range files {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	out := make(chan fileWork)
	go func() {
		defer close(out)
		for i := range results {
			select {
			case w := <-results[i]:
				out <- w
			case <-ctx.Done():
				wg.Wait()
				return
			}
		}
		wg.Wait()
	}()
	return out
}

func (ix *Indexer) readFile(f *model.File) fileWork {
	src, err := os.ReadFile(f.FullPath)
	if err != nil {
		return fileWork{file: f, err: err}
	}
	content := strings.ToValidUTF8(string(src), "")

	sum := sha256.New()
	fmt.Fprintf(sum, "%s\x00%d/%d\x00", ix.emb.Model(), ix.opts.Chunk.Size, ix.opts.Chunk.Overlap)
	sum.Write([]byte(content))

	return fileWork{
		file:        f,
		chunks:      chunker.Split(content, ix.opts.Chunk),
		fingerprint: hex.EncodeToString(sum.Sum(nil)),
	}
}

func chunkDocuments(repo, embedModel string, w fileWork, ids []string) []Document {
	functions := strings.Join(w.file.FunctionNames(), ",")
	classes := strings.Join(w.file.ClassNames(), ",")

	docs := make([]Document, len(w.chunks))
	for i, c := range w.chunks {
		docs[i] = Document{
			ID:   ids[i],
			Text: c.Text,
			Metadata: vectorstore.Metadata{
				"repo":        repo,
				"file":        w.file.Path,
				"chunk_index": c.Index,
				"functions":   functions,
				"classes":     classes,
				"start_line":  c.StartLine,
				"end_line":    c.EndLine,
				"fingerprint": w.fingerprint,
				"model":       embedModel,
			},
		}
	}
	return docs
}
