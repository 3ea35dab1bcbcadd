package upload

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"upload-throttle/pipeline/throttle"
	"upload-throttle/pipeline/throttle/application"
	"upload-throttle/pipeline/throttle/domain"

	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize é o tamanho máximo de cada chunk enviado.
const DefaultChunkSize = 1_900_000

type Options struct {
	ChunkSize int
	Backoff   application.Backoff
	Pacer     domain.Pacer
	Logger    *slog.Logger
}

// Result traz os ids dos chunks de um arquivo, na ordem do conteúdo.
type Result struct {
	Path   string
	Bytes  int
	Chunks []domain.ChunkID
}

type Uploader struct {
	set       *throttle.Set
	loader    Loader
	workflow  *application.ChunkWorkflow
	chunkSize int
	log       *slog.Logger
}

func New(set *throttle.Set, loader Loader, creator domain.ChunkCreator, opts Options) *Uploader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.DiscardHandler)
	}
	log := opts.Logger.With(slog.String("session", set.Session()))

	w := set.ChunkWorkflow(creator)
	if opts.Backoff.MaxAttempts > 0 {
		w.Backoff = opts.Backoff
	}
	w.Pacer = opts.Pacer
	w.Logger = log

	return &Uploader{
		set:       set,
		loader:    loader,
		workflow:  w,
		chunkSize: opts.ChunkSize,
		log:       log,
	}
}

// Upload envia todos os arquivos concorrentemente. No primeiro erro o contexto
// dos demais é cancelado e o erro é retornado; os pesos já adquiridos são devolvidos.
func (u *Uploader) Upload(ctx context.Context, files []File) ([]Result, error) {
	start := time.Now()
	results := make([]Result, len(files))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			r, err := u.uploadFile(gctx, f)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	u.log.Info("upload complete",
		slog.Int("files", len(files)),
		slog.Duration("elapsed", time.Since(start)),
	)
	return results, nil
}

func (u *Uploader) uploadFile(ctx context.Context, f File) (Result, error) {
	data, err := u.load(ctx, f)
	if err != nil {
		return Result{}, err
	}

	chunks := Split(f.Path, data, u.chunkSize)
	ids := make([]domain.ChunkID, len(chunks))

	g, gctx := errgroup.WithContext(ctx)
	for i, c := range chunks {
		g.Go(func() error {
			id, err := u.workflow.Create(gctx, c)
			if err != nil {
				return err
			}
			ids[i] = id
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Result{}, fmt.Errorf("upload %s: %w", f.Path, err)
	}

	u.log.Debug("file uploaded",
		slog.String("path", f.Path),
		slog.Int("bytes", len(data)),
		slog.Int("chunks", len(ids)),
	)
	return Result{Path: f.Path, Bytes: len(data), Chunks: ids}, nil
}

// load segura o peso do arquivo só enquanto lê e codifica.
func (u *Uploader) load(ctx context.Context, f File) ([]byte, error) {
	lease, err := u.set.AcquireFile(ctx, f.Size)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", f.Path, err)
	}
	defer lease.Release()
	return u.loader.Load(ctx, f)
}

// Split divide data em chunks de até size bytes. Conteúdo vazio vira um único chunk vazio.
func Split(path string, data []byte, size int) []domain.Chunk {
	if len(data) == 0 {
		return []domain.Chunk{{Path: path, Index: 0, Data: data}}
	}
	n := (len(data) + size - 1) / size
	chunks := make([]domain.Chunk, 0, n)
	for i := 0; i < n; i++ {
		end := min((i+1)*size, len(data))
		chunks = append(chunks, domain.Chunk{Path: path, Index: i, Data: data[i*size : end]})
	}
	return chunks
}
